package models

import "time"

// Vote tracks one user's vote on either a post or a comment. Postgres treats
// NULLs as distinct, so each unique index only constrains its own target.
type Vote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_vote_post;uniqueIndex:idx_vote_comment" json:"user_id"`
	PostID    *int      `gorm:"uniqueIndex:idx_vote_post" json:"post_id,omitempty"`
	CommentID *int      `gorm:"uniqueIndex:idx_vote_comment" json:"comment_id,omitempty"`
	VoteType  int       `json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	Upvote   = 1
	Downvote = -1
)

type VoteRequest struct {
	VoteType int `json:"vote_type" binding:"required,oneof=-1 1"`
}

// VoteResult describes what a toggle did.
type VoteResult string

const (
	VoteRecorded VoteResult = "Vote recorded"
	VoteUpdated  VoteResult = "Vote updated"
	VoteRemoved  VoteResult = "Vote removed"
)
