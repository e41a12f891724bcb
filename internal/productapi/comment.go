package productapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/myreviews/storefront/pkg/errors"
	"github.com/myreviews/storefront/pkg/httpclient"
)

// CommentRequest is the body of a comment submission.
type CommentRequest struct {
	ProductID string
	UserID    string
	Content   string
}

// MarshalJSON sends numeric ids as JSON numbers, which is what the product
// API stores; anything else goes as a string.
func (r CommentRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ProductID any    `json:"productId"`
		UserID    any    `json:"userId"`
		Content   string `json:"content"`
	}{
		ProductID: numericOrString(r.ProductID),
		UserID:    numericOrString(r.UserID),
		Content:   r.Content,
	})
}

func numericOrString(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// CommentResult is the API's answer to a comment submission.
type CommentResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CreateComment posts a comment. A non-2xx status becomes an AppError carrying
// the API's message; a 2xx answer is returned as-is, including success=false.
func (c *Client) CreateComment(ctx context.Context, cr CommentRequest) (*CommentResult, error) {
	body, err := json.Marshal(cr)
	if err != nil {
		return nil, fmt.Errorf("marshal comment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.CommentsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create comment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, "create_comment", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	var result CommentResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return nil, apperrors.Upstream(serviceName, fmt.Errorf("decode comment response: %w", err))
	}
	return &result, nil
}
