package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/markdown"
	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
	"github.com/emilythestrangee/kaen/internal/thread"
)

type CommentHandler struct {
	comments CommentRepository
	votes    VoteRepository
	users    UserRepository
	cache    cache.Store
	md       *markdown.Processor
}

func NewCommentHandler(comments CommentRepository, votes VoteRepository, users UserRepository, c cache.Store, md *markdown.Processor) *CommentHandler {
	return &CommentHandler{comments: comments, votes: votes, users: users, cache: c, md: md}
}

// list reads the post's comments through the cache. Cache failures only
// cost a database round trip. The collection is cached only if no
// invalidation happened while the database was being read.
func (h *CommentHandler) list(ctx context.Context, postID int) ([]models.Comment, error) {
	comments, ok, err := h.cache.Get(ctx, postID)
	if err != nil {
		logger.Log.Warn("comment cache read failed", "component", "handlers", "post_id", postID, "error", err)
	}
	if ok {
		return comments, nil
	}

	gen, genErr := h.cache.Generation(ctx, postID)
	if genErr != nil {
		logger.Log.Warn("comment cache read failed", "component", "handlers", "post_id", postID, "error", genErr)
	}

	comments, err = h.comments.ListComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		exists, err := h.comments.PostExists(ctx, postID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("post %d: %w", postID, store.ErrNotFound)
		}
		comments = []models.Comment{}
	}
	if genErr != nil {
		return comments, nil
	}
	if _, err := h.cache.Fill(ctx, postID, gen, comments); err != nil {
		logger.Log.Warn("comment cache write failed", "component", "handlers", "post_id", postID, "error", err)
	}
	return comments, nil
}

func (h *CommentHandler) invalidate(ctx context.Context, postID int) {
	if err := h.cache.Invalidate(ctx, postID); err != nil {
		logger.Log.Warn("cache invalidation failed", "component", "handlers", "post_id", postID, "error", err)
	}
}

// GetComments returns the flat comment collection of a post, oldest first.
func (h *CommentHandler) GetComments(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}

	comments, err := h.list(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, comments)
}

// GetCommentTree returns the comments of a post nested under their parents.
func (h *CommentHandler) GetCommentTree(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}

	comments, err := h.list(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, thread.BuildCommentTree(comments))
}

// GetThread renders the discussion for the caller. ?format= picks json
// (default), html or text and ?variant= picks the presentation.
func (h *CommentHandler) GetThread(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	variant, err := thread.VariantByName(c.Query("variant"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comments, err := h.list(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err, "Post not found")
		return
	}

	snap := thread.Snapshot{
		PostID:    postID,
		Comments:  comments,
		Tree:      thread.BuildCommentTree(comments),
		Version:   1,
		FetchedAt: time.Now(),
		Loaded:    true,
	}
	page := thread.NewRenderer(variant, h.md).Render(snap, h.viewer(c), nil)

	var buf bytes.Buffer
	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "json":
		c.JSON(http.StatusOK, page)
	case "html":
		if err := thread.RenderHTML(&buf, page); err != nil {
			respondError(c, err, "Post not found")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	case "text":
		if err := thread.RenderText(&buf, page); err != nil {
			respondError(c, err, "Post not found")
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, html or text"})
	}
}

// viewer resolves the optional caller. Anonymous or unknown users read the
// thread without any affordances.
func (h *CommentHandler) viewer(c *gin.Context) *thread.Viewer {
	userID, ok := extractUserID(c)
	if !ok {
		return nil
	}
	user, err := h.users.ByID(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	return &thread.Viewer{ID: user.ID, DisplayName: user.Name(), AvatarURL: user.Avatar}
}

// CreateComment creates a new comment on a post, optionally as a reply.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.ByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		respondError(c, err, "User not found")
		return
	}

	comment, err := h.comments.CreateComment(c.Request.Context(), models.NewComment{
		PostID:            postID,
		ParentCommentID:   input.ParentCommentID,
		Content:           input.Content,
		AuthorID:          user.ID,
		AuthorDisplayName: user.Name(),
		AuthorAvatarURL:   user.Avatar,
	})
	if err != nil {
		respondError(c, err, "Post or parent comment not found")
		return
	}

	h.invalidate(c.Request.Context(), postID)
	c.JSON(http.StatusCreated, comment)
}

// owned loads the comment and checks that the caller wrote it. It writes
// the error response itself.
func (h *CommentHandler) owned(c *gin.Context, commentID, userID int) (*models.Comment, bool) {
	comment, err := h.comments.GetComment(c.Request.Context(), commentID)
	if err != nil {
		respondError(c, err, "Comment not found")
		return nil, false
	}
	if comment.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only change your own comments"})
		return nil, false
	}
	return comment, true
}

// UpdateComment replaces the content of the caller's comment.
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input models.UpdateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, ok := h.owned(c, commentID, userID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.comments.UpdateCommentContent(ctx, commentID, input.Content); err != nil {
		respondError(c, err, "Comment not found")
		return
	}
	h.invalidate(ctx, comment.PostID)

	updated, err := h.comments.GetComment(ctx, commentID)
	if err != nil {
		respondError(c, err, "Comment not found")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteComment removes the caller's comment. Replies stay and are shown at
// the top level. Deleting a comment that is already gone succeeds.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	comment, err := h.comments.GetComment(ctx, commentID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
		return
	}
	if err != nil {
		respondError(c, err, "Comment not found")
		return
	}
	if comment.AuthorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only change your own comments"})
		return
	}

	if err := h.comments.DeleteComment(ctx, commentID); err != nil {
		respondError(c, err, "Comment not found")
		return
	}
	h.invalidate(ctx, comment.PostID)
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// VoteComment toggles the caller's vote on a comment.
func (h *CommentHandler) VoteComment(c *gin.Context) {
	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote type must be -1 or 1"})
		return
	}
	h.vote(c, input.VoteType)
}

func (h *CommentHandler) UpvoteComment(c *gin.Context) {
	h.vote(c, models.Upvote)
}

func (h *CommentHandler) DownvoteComment(c *gin.Context) {
	h.vote(c, models.Downvote)
}

func (h *CommentHandler) vote(c *gin.Context, voteType int) {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	comment, err := h.comments.GetComment(ctx, commentID)
	if err != nil {
		respondError(c, err, "Comment not found")
		return
	}

	result, err := h.votes.ToggleCommentVote(ctx, userID, commentID, voteType)
	if err != nil {
		respondError(c, err, "Comment not found")
		return
	}
	h.invalidate(ctx, comment.PostID)
	c.JSON(http.StatusOK, gin.H{"message": result})
}
