package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/emilythestrangee/kaen/internal/models"
)

// Login signs in and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, "/api/login", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, "register", http.MethodPost, "/api/register", req, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "me", "/api/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListPosts(ctx context.Context, communityID *int) ([]models.Post, error) {
	path := "/api/posts"
	if communityID != nil {
		path += "?" + url.Values{"community_id": {fmt.Sprint(*communityID)}}.Encode()
	}
	var posts []models.Post
	if err := c.get(ctx, "list posts", path, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UserPosts lists the posts written by userID, newest first.
func (c *Client) UserPosts(ctx context.Context, userID int) ([]models.Post, error) {
	var posts []models.Post
	if err := c.get(ctx, "list user posts", fmt.Sprintf("/api/users/%d/posts", userID), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id int) (*models.Post, error) {
	var post models.Post
	if err := c.get(ctx, "get post", fmt.Sprintf("/api/posts/%d", id), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, "create post", http.MethodPost, "/api/posts", req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreateCommunity(ctx context.Context, req models.CreateCommunityRequest) (*models.Community, error) {
	var community models.Community
	if err := c.do(ctx, "create community", http.MethodPost, "/api/communities", req, &community); err != nil {
		return nil, err
	}
	return &community, nil
}

func (c *Client) ListCommunities(ctx context.Context) ([]models.Community, error) {
	var communities []models.Community
	if err := c.get(ctx, "list communities", "/api/communities", &communities); err != nil {
		return nil, err
	}
	return communities, nil
}
