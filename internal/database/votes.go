package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// TogglePostVote applies one user's vote on a post: the same vote again
// removes it, the opposite vote switches it.
func (r *VoteRepository) TogglePostVote(ctx context.Context, userID, postID, voteType int) (models.VoteResult, error) {
	return r.toggle(ctx, &models.Post{}, "post_id", userID, postID, voteType)
}

func (r *VoteRepository) ToggleCommentVote(ctx context.Context, userID, commentID, voteType int) (models.VoteResult, error) {
	return r.toggle(ctx, &models.Comment{}, "comment_id", userID, commentID, voteType)
}

func (r *VoteRepository) toggle(ctx context.Context, target any, column string, userID, targetID, voteType int) (models.VoteResult, error) {
	if voteType != models.Upvote && voteType != models.Downvote {
		return "", store.ErrValidation
	}

	var result models.VoteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(target).Where("id = ?", targetID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}

		var existing models.Vote
		err := tx.Where("user_id = ? AND "+column+" = ?", userID, targetID).First(&existing).Error
		switch {
		case err == nil && existing.VoteType == voteType:
			result = models.VoteRemoved
			return tx.Delete(&existing).Error
		case err == nil:
			result = models.VoteUpdated
			existing.VoteType = voteType
			return tx.Save(&existing).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		vote := models.Vote{UserID: userID, VoteType: voteType}
		id := targetID
		if column == "post_id" {
			vote.PostID = &id
		} else {
			vote.CommentID = &id
		}
		result = models.VoteRecorded
		return tx.Create(&vote).Error
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", classify("vote", err)
	}
	return result, nil
}
