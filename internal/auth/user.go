package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/myreviews/storefront/internal/domain"
)

var errNoUser = errors.New("response carries no user")

// userPayload accepts the id as either a number or a string.
type userPayload struct {
	ID     json.RawMessage `json:"id"`
	UserID json.RawMessage `json:"userId"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
}

// DecodeUser extracts the user from an auth response. The user may be the
// body itself or nested under "user", "data" or "data.user".
func DecodeUser(body []byte) (*domain.User, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	for _, key := range []string{"user", "data"} {
		if nested, ok := envelope[key]; ok && len(nested) > 0 && nested[0] == '{' {
			if u, err := DecodeUser(nested); err == nil {
				return u, nil
			}
		}
	}

	var p userPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	id := rawID(p.ID)
	if id == "" {
		id = rawID(p.UserID)
	}
	if id == "" && p.Name == "" && p.Email == "" {
		return nil, errNoUser
	}
	return &domain.User{ID: id, Name: p.Name, Email: p.Email}, nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
