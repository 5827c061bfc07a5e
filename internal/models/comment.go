package models

import "time"

// Comment is a single message attached to a post, optionally replying to
// another comment of the same post. Lists are always handed out in
// ascending CreatedAt order.
type Comment struct {
	ID                int       `gorm:"primaryKey" json:"id"`
	PostID            int       `gorm:"not null;index" json:"post_id"`
	ParentCommentID   *int      `gorm:"index" json:"parent_comment_id,omitempty"`
	Content           string    `gorm:"not null" json:"content"`
	AuthorID          int       `gorm:"not null;index" json:"author_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorAvatarURL   string    `json:"author_avatar_url,omitempty"`
	Upvotes           int       `gorm:"-" json:"upvotes"`
	Downvotes         int       `gorm:"-" json:"downvotes"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsReply reports whether the comment declares a parent.
func (c Comment) IsReply() bool {
	return c.ParentCommentID != nil
}

// Edited reports whether the content changed after creation.
func (c Comment) Edited() bool {
	return c.UpdatedAt.Sub(c.CreatedAt) > time.Second
}

// NewComment is the payload for creating a comment. Author fields are taken
// from the current session at submission time.
type NewComment struct {
	PostID            int    `json:"post_id" validate:"required,gt=0"`
	ParentCommentID   *int   `json:"parent_comment_id,omitempty" validate:"omitempty,gt=0"`
	Content           string `json:"content" validate:"required,notblank,max=10000"`
	AuthorID          int    `json:"author_id" validate:"required,gt=0"`
	AuthorDisplayName string `json:"author_display_name" validate:"required,max=50"`
	AuthorAvatarURL   string `json:"author_avatar_url,omitempty" validate:"max=500"`
}

type CreateCommentRequest struct {
	Content         string `json:"content" binding:"required"`
	ParentCommentID *int   `json:"parent_comment_id,omitempty"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
