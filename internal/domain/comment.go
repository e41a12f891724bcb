package domain

import "time"

// Comment is a comment submitted during the current session. It only lives
// in memory while its product stays open.
type Comment struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
