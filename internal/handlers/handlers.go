package handlers

import (
	"context"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/markdown"
	"github.com/emilythestrangee/kaen/internal/middleware"
	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id int) (*models.User, error)
	UpdateProfile(ctx context.Context, id int, req models.UpdateProfileRequest) (*models.User, error)
}

type PostRepository interface {
	List(ctx context.Context, communityID *int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID int) ([]models.Post, error)
	Get(ctx context.Context, id int) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, id, authorID int, req models.UpdatePostRequest) (*models.Post, error)
	Delete(ctx context.Context, id, authorID int) error
}

type CommentRepository interface {
	store.CommentStore
	GetComment(ctx context.Context, id int) (*models.Comment, error)
	PostExists(ctx context.Context, postID int) (bool, error)
}

type VoteRepository interface {
	TogglePostVote(ctx context.Context, userID, postID, voteType int) (models.VoteResult, error)
	ToggleCommentVote(ctx context.Context, userID, commentID, voteType int) (models.VoteResult, error)
}

type CommunityRepository interface {
	List(ctx context.Context) ([]models.Community, error)
	Create(ctx context.Context, community *models.Community) error
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Users       UserRepository
	Posts       PostRepository
	Comments    CommentRepository
	Votes       VoteRepository
	Communities CommunityRepository
	Cache       cache.Store
	Tokens      *middleware.Tokens
	Markdown    *markdown.Processor
}

// Handler combines all handler types
type Handler struct {
	Auth      *AuthHandler
	Post      *PostHandler
	Comment   *CommentHandler
	Community *CommunityHandler
	User      *UserHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	if d.Cache == nil {
		d.Cache = cache.NewMemory(0)
	}
	if d.Markdown == nil {
		d.Markdown = markdown.New()
	}
	return &Handler{
		Auth:      NewAuthHandler(d.Users, d.Tokens),
		Post:      NewPostHandler(d.Posts, d.Votes, d.Cache),
		Comment:   NewCommentHandler(d.Comments, d.Votes, d.Users, d.Cache, d.Markdown),
		Community: NewCommunityHandler(d.Communities),
		User:      NewUserHandler(d.Users),
	}
}
