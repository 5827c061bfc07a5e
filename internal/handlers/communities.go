package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/kaen/internal/database"
	"github.com/emilythestrangee/kaen/internal/models"
)

type CommunityHandler struct {
	communities CommunityRepository
}

func NewCommunityHandler(communities CommunityRepository) *CommunityHandler {
	return &CommunityHandler{communities: communities}
}

func (h *CommunityHandler) GetCommunities(c *gin.Context) {
	communities, err := h.communities.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Community not found")
		return
	}
	if communities == nil {
		communities = []models.Community{}
	}
	c.JSON(http.StatusOK, communities)
}

func (h *CommunityHandler) CreateCommunity(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input models.CreateCommunityRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	community := models.Community{
		Name:        input.Name,
		Description: input.Description,
		CreatedBy:   userID,
	}
	if err := h.communities.Create(c.Request.Context(), &community); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Community name already taken"})
			return
		}
		respondError(c, err, "Community not found")
		return
	}
	c.JSON(http.StatusCreated, community)
}
