package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/models"
)

type PostHandler struct {
	posts PostRepository
	votes VoteRepository
	cache cache.Store
}

func NewPostHandler(posts PostRepository, votes VoteRepository, c cache.Store) *PostHandler {
	return &PostHandler{posts: posts, votes: votes, cache: c}
}

// GetPosts lists posts newest first, optionally narrowed by ?community_id=.
func (h *PostHandler) GetPosts(c *gin.Context) {
	var communityID *int
	if raw := c.Query("community_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid community_id"})
			return
		}
		communityID = &id
	}

	posts, err := h.posts.List(c.Request.Context(), communityID)
	if err != nil {
		respondError(c, err, "Community not found")
		return
	}

	// If no posts, return empty array not null
	if posts == nil {
		posts = []models.Post{}
	}
	c.JSON(http.StatusOK, posts)
}

// GetUserPosts returns all posts by a specific user
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	posts, err := h.posts.ListByAuthor(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "User not found")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}

	post, err := h.posts.Get(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post := models.Post{
		Title:       input.Title,
		Content:     input.Content,
		Image:       input.Image,
		AuthorID:    userID,
		CommunityID: input.CommunityID,
	}
	if err := h.posts.Create(c.Request.Context(), &post); err != nil {
		respondError(c, err, "Community not found")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input models.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.Update(c.Request.Context(), postID, userID, input)
	if err != nil {
		respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost removes the post together with its comments and votes.
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), postID, userID); err != nil {
		respondError(c, err, "Post not found")
		return
	}
	if err := h.cache.Invalidate(c.Request.Context(), postID); err != nil {
		logger.Log.Warn("cache invalidation failed", "component", "handlers", "post_id", postID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// VotePost toggles the caller's vote: repeating a vote removes it.
func (h *PostHandler) VotePost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input models.VoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote type must be -1 or 1"})
		return
	}

	result, err := h.votes.TogglePostVote(c.Request.Context(), userID, postID, input.VoteType)
	if err != nil {
		respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": result})
}
