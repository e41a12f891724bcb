package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/myreviews/storefront/internal/domain"
	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/httpclient"
)

const serviceName = "auth-api"

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds the auth endpoint layout.
type Config struct {
	BaseURL      string
	LoginPath    string
	RegisterPath string
}

// Client calls the login and registration endpoints of the product API.
type Client struct {
	http   HTTPDoer
	cfg    Config
	logger *slog.Logger
}

// NewClient creates an auth API client.
func NewClient(doer HTTPDoer, cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{http: doer, cfg: cfg, logger: logger}
}

// Login exchanges credentials for the user they belong to. Rejected
// credentials come back as an Unauthorized AppError.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	payload := map[string]string{"email": email, "password": password}
	user, err := c.post(ctx, c.cfg.LoginPath, payload)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if user.Email == "" {
		user.Email = email
	}
	c.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return user, nil
}

// Register creates an account and returns the user the API created.
func (c *Client) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	payload := map[string]string{"name": name, "email": email, "password": password}
	user, err := c.post(ctx, c.cfg.RegisterPath, payload)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if user.Name == "" {
		user.Name = name
	}
	if user.Email == "" {
		user.Email = email
	}
	c.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*domain.User, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Upstream(serviceName, fmt.Errorf("read response: %w", err))
	}
	user, err := DecodeUser(raw)
	if err != nil {
		return nil, apperrors.Upstream(serviceName, err)
	}
	return user, nil
}
