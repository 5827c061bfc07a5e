package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// List returns posts newest first, optionally limited to one community.
func (r *PostRepository) List(ctx context.Context, communityID *int) ([]models.Post, error) {
	if communityID != nil {
		return r.find(ctx, "list posts", "community_id = ?", *communityID)
	}
	return r.find(ctx, "list posts")
}

// ListByAuthor returns the posts a user wrote, newest first.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID int) ([]models.Post, error) {
	return r.find(ctx, "list user posts", "author_id = ?", authorID)
}

func (r *PostRepository) find(ctx context.Context, op string, where ...any) ([]models.Post, error) {
	posts := []models.Post{}
	q := r.db.WithContext(ctx).Preload("Author").Order("created_at desc")
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	if err := q.Find(&posts).Error; err != nil {
		return nil, store.Transport(op, err)
	}
	if err := r.decorate(ctx, posts); err != nil {
		return nil, store.Transport(op, err)
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, classify("get post", err)
	}
	posts := []models.Post{post}
	if err := r.decorate(ctx, posts); err != nil {
		return nil, store.Transport("get post", err)
	}
	return &posts[0], nil
}

// decorate fills vote and comment counts.
func (r *PostRepository) decorate(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	db := r.db.WithContext(ctx)

	var tallies []voteTally
	err := db.Model(&models.Vote{}).
		Select("post_id AS target_id, "+tallyColumns).
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&tallies).Error
	if err != nil {
		return err
	}
	byPost := make(map[int]voteTally, len(tallies))
	for _, t := range tallies {
		byPost[t.TargetID] = t
	}

	var counts []struct {
		PostID int
		N      int
	}
	err = db.Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&counts).Error
	if err != nil {
		return err
	}
	byCount := make(map[int]int, len(counts))
	for _, c := range counts {
		byCount[c.PostID] = c.N
	}

	for i := range posts {
		t := byPost[posts[i].ID]
		posts[i].Upvotes, posts[i].Downvotes = t.Up, t.Down
		posts[i].Comments = byCount[posts[i].ID]
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	db := r.db.WithContext(ctx)
	if post.CommunityID != nil {
		var n int64
		if err := db.Model(&models.Community{}).Where("id = ?", *post.CommunityID).Count(&n).Error; err != nil {
			return store.Transport("create post", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
	}
	if err := db.Create(post).Error; err != nil {
		return classify("create post", err)
	}
	return db.Preload("Author").First(post, post.ID).Error
}

// Update changes title, content and image of a post owned by authorID.
func (r *PostRepository) Update(ctx context.Context, id, authorID int, req models.UpdatePostRequest) (*models.Post, error) {
	post, err := r.owned(ctx, "update post", id, authorID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Image != nil {
		updates["image"] = *req.Image
	}
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
			return nil, store.Transport("update post", err)
		}
	}
	return r.Get(ctx, id)
}

// Delete removes a post owned by authorID with its comments and votes.
func (r *PostRepository) Delete(ctx context.Context, id, authorID int) error {
	if _, err := r.owned(ctx, "delete post", id, authorID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return store.Transport("delete post", err)
	}
	return nil
}

func (r *PostRepository) owned(ctx context.Context, op string, id, authorID int) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, classify(op, err)
	}
	if post.AuthorID != authorID {
		return nil, store.ErrForbidden
	}
	return &post, nil
}
