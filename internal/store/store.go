// Package store defines the persistence collaborator the comment thread
// talks to, together with the errors it may return.
package store

import (
	"context"

	"github.com/emilythestrangee/kaen/internal/models"
)

// CommentStore is the backend contract for one post's discussion.
//
// ListComments returns every comment of the post in ascending CreatedAt
// order (ties broken by id). DeleteComment is idempotent: deleting an id
// that no longer exists succeeds.
type CommentStore interface {
	ListComments(ctx context.Context, postID int) ([]models.Comment, error)
	CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error)
	UpdateCommentContent(ctx context.Context, commentID int, content string) error
	DeleteComment(ctx context.Context, commentID int) error
}
