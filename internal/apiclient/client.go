// Package apiclient talks to the Kaen HTTP API. Client implements
// store.CommentStore so a thread.View can run against a remote server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

// StatusError is an unexpected response status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 15s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithRetries bounds how long idempotent reads are retried after
// transport failures. Zero disables retries.
func WithRetries(maxElapsed time.Duration) Option {
	return func(c *Client) { c.retryFor = maxElapsed }
}

type Client struct {
	baseURL  string
	http     *http.Client
	retryFor time.Duration

	mu    sync.RWMutex
	token string
}

var _ store.CommentStore = (*Client)(nil)

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		retryFor: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// do sends in as JSON and decodes the response into out (when non-nil).
// Error statuses map onto the store errors; everything else that fails is
// a TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return store.Transport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return store.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// get retries transport failures with exponential backoff.
func (c *Client) get(ctx context.Context, op, path string, out any) error {
	if c.retryFor <= 0 {
		return c.do(ctx, op, http.MethodGet, path, nil, out)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.retryFor

	return backoff.Retry(func() error {
		err := c.do(ctx, op, http.MethodGet, path, nil, out)
		if err != nil && !store.IsTransport(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

func statusError(op string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w: %s", op, store.ErrValidation, payload.Error)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, store.ErrAuth)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, store.ErrForbidden)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	default:
		return store.Transport(op, &StatusError{Code: resp.StatusCode, Message: payload.Error})
	}
}

// ListComments returns the post's comments. Records that could not have
// come from a healthy server fail the whole call.
func (c *Client) ListComments(ctx context.Context, postID int) ([]models.Comment, error) {
	var comments []models.Comment
	if err := c.get(ctx, "list comments", fmt.Sprintf("/api/posts/%d/comments", postID), &comments); err != nil {
		return nil, err
	}
	for _, cm := range comments {
		if err := store.ValidateComment(cm); err != nil {
			return nil, store.Transport("list comments", fmt.Errorf("malformed comment %d: %v", cm.ID, err))
		}
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// CreateComment posts a comment. The server takes the author from the
// token, so in.Author* only need to pass validation.
func (c *Client) CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	if err := store.ValidateNewComment(in); err != nil {
		return nil, err
	}
	req := models.CreateCommentRequest{Content: in.Content, ParentCommentID: in.ParentCommentID}

	var created models.Comment
	if err := c.do(ctx, "create comment", http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", in.PostID), req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateCommentContent(ctx context.Context, commentID int, content string) error {
	if err := store.ValidateContent(content); err != nil {
		return err
	}
	req := models.UpdateCommentRequest{Content: content}
	return c.do(ctx, "update comment", http.MethodPut, fmt.Sprintf("/api/comments/%d", commentID), req, nil)
}

// DeleteComment is idempotent: a comment that is already gone counts as
// deleted.
func (c *Client) DeleteComment(ctx context.Context, commentID int) error {
	err := c.do(ctx, "delete comment", http.MethodDelete, fmt.Sprintf("/api/comments/%d", commentID), nil, nil)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (c *Client) VoteComment(ctx context.Context, commentID, voteType int) (models.VoteResult, error) {
	var resp struct {
		Message models.VoteResult `json:"message"`
	}
	err := c.do(ctx, "vote comment", http.MethodPost, fmt.Sprintf("/api/comments/%d/vote", commentID), models.VoteRequest{VoteType: voteType}, &resp)
	return resp.Message, err
}
