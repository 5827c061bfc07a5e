package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

// CommentRepository is the Postgres backed comment store.
type CommentRepository struct {
	db *gorm.DB
}

var _ store.CommentStore = (*CommentRepository)(nil)

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

type voteTally struct {
	TargetID int
	Up       int
	Down     int
}

const tallyColumns = "SUM(CASE WHEN vote_type = 1 THEN 1 ELSE 0 END) AS up, " +
	"SUM(CASE WHEN vote_type = -1 THEN 1 ELSE 0 END) AS down"

func (r *CommentRepository) tallies(ctx context.Context, ids []int) (map[int]voteTally, error) {
	out := make(map[int]voteTally, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []voteTally
	err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Select("comment_id AS target_id, "+tallyColumns).
		Where("comment_id IN ?", ids).
		Group("comment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TargetID] = row
	}
	return out, nil
}

// ListComments returns the post's comments oldest first with vote counts.
func (r *CommentRepository) ListComments(ctx context.Context, postID int) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at asc, id asc").
		Find(&comments).Error
	if err != nil {
		return nil, store.Transport("list comments", err)
	}

	ids := make([]int, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	tallies, err := r.tallies(ctx, ids)
	if err != nil {
		return nil, store.Transport("list comments", err)
	}
	for i := range comments {
		t := tallies[comments[i].ID]
		comments[i].Upvotes, comments[i].Downvotes = t.Up, t.Down
	}
	return comments, nil
}

func (r *CommentRepository) PostExists(ctx context.Context, postID int) (bool, error) {
	var posts int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&posts).Error; err != nil {
		return false, store.Transport("find post", err)
	}
	return posts > 0, nil
}

func (r *CommentRepository) GetComment(ctx context.Context, id int) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, classify("get comment", err)
	}
	tallies, err := r.tallies(ctx, []int{id})
	if err != nil {
		return nil, store.Transport("get comment", err)
	}
	comment.Upvotes, comment.Downvotes = tallies[id].Up, tallies[id].Down
	return &comment, nil
}

// CreateComment inserts a comment. The post must exist and a parent, when
// given, must be a comment of the same post.
func (r *CommentRepository) CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	if err := store.ValidateNewComment(in); err != nil {
		return nil, err
	}

	exists, err := r.PostExists(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("post %d: %w", in.PostID, store.ErrNotFound)
	}

	db := r.db.WithContext(ctx)

	if in.ParentCommentID != nil {
		var parents int64
		err := db.Model(&models.Comment{}).
			Where("id = ? AND post_id = ?", *in.ParentCommentID, in.PostID).
			Count(&parents).Error
		if err != nil {
			return nil, store.Transport("create comment", err)
		}
		if parents == 0 {
			return nil, fmt.Errorf("parent comment %d: %w", *in.ParentCommentID, store.ErrNotFound)
		}
	}

	comment := models.Comment{
		PostID:            in.PostID,
		ParentCommentID:   in.ParentCommentID,
		Content:           in.Content,
		AuthorID:          in.AuthorID,
		AuthorDisplayName: in.AuthorDisplayName,
		AuthorAvatarURL:   in.AuthorAvatarURL,
	}
	if err := db.Create(&comment).Error; err != nil {
		return nil, classify("create comment", err)
	}
	return &comment, nil
}

func (r *CommentRepository) UpdateCommentContent(ctx context.Context, commentID int, content string) error {
	if err := store.ValidateContent(content); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", commentID).
		Update("content", content)
	if res.Error != nil {
		return store.Transport("update comment", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteComment removes the comment and its votes. Missing ids succeed.
func (r *CommentRepository) DeleteComment(ctx context.Context, commentID int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Comment{}, commentID).Error
	})
	if err != nil {
		return store.Transport("delete comment", err)
	}
	return nil
}
