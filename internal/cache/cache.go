// Package cache holds the flat comment collection of a post. Entries are
// replaced wholesale and never patched in place.
package cache

import (
	"context"
	"fmt"

	"github.com/emilythestrangee/kaen/internal/models"
)

// Store caches comment collections. Every Invalidate bumps the post's
// generation; a reader takes the generation before going to the database and
// hands it to Fill, which refuses to store once the generation has moved.
type Store interface {
	// Get returns the cached collection; ok is false on a miss.
	Get(ctx context.Context, postID int) (comments []models.Comment, ok bool, err error)
	// Set stores unconditionally.
	Set(ctx context.Context, postID int, comments []models.Comment) error
	Generation(ctx context.Context, postID int) (uint64, error)
	// Fill stores comments read at generation gen. stored is false when an
	// invalidation happened since.
	Fill(ctx context.Context, postID int, gen uint64, comments []models.Comment) (stored bool, err error)
	Invalidate(ctx context.Context, postID int) error
}

// Key is the storage key used for a post's comments.
func Key(postID int) string {
	return fmt.Sprintf("kaen:comments:post:%d", postID)
}

// GenerationKey holds the invalidation counter of a post.
func GenerationKey(postID int) string {
	return Key(postID) + ":gen"
}

func clone(comments []models.Comment) []models.Comment {
	if comments == nil {
		return []models.Comment{}
	}
	out := make([]models.Comment, len(comments))
	copy(out, comments)
	for i := range out {
		if p := out[i].ParentCommentID; p != nil {
			v := *p
			out[i].ParentCommentID = &v
		}
	}
	return out
}
