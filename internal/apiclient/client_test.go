package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestListComments(t *testing.T) {
	parent := 1
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/posts/3/comments", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []models.Comment{
			{ID: 1, PostID: 3, Content: "root", AuthorID: 7},
			{ID: 2, PostID: 3, ParentCommentID: &parent, Content: "reply", AuthorID: 8},
		})
	})

	got, err := New(srv.URL, WithToken("tok")).ListComments(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, *got[1].ParentCommentID)
}

func TestListComments_Empty(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, nil)
	})

	got, err := New(srv.URL).ListComments(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListComments_MalformedRecord(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Comment{{ID: 0, PostID: 3}})
	})

	_, err := New(srv.URL, WithRetries(0)).ListComments(context.Background(), 3)
	assert.True(t, store.IsTransport(err))
	assert.NotErrorIs(t, err, store.ErrValidation)
}

func TestListComments_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, []models.Comment{{ID: 1, PostID: 3, Content: "root"}})
	})

	got, err := New(srv.URL, WithRetries(3*time.Second)).ListComments(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestListComments_NoRetryOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid id"})
	})

	_, err := New(srv.URL, WithRetries(3*time.Second)).ListComments(context.Background(), 3)
	assert.ErrorIs(t, err, store.ErrValidation)
	assert.EqualValues(t, 1, calls.Load())
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, store.ErrValidation},
		{http.StatusConflict, store.ErrValidation},
		{http.StatusUnauthorized, store.ErrAuth},
		{http.StatusForbidden, store.ErrForbidden},
		{http.StatusNotFound, store.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, map[string]string{"error": "nope"})
			})
			err := New(srv.URL).UpdateCommentContent(context.Background(), 1, "edited")
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, store.IsTransport(err))
		})
	}

	t.Run("ServerError", func(t *testing.T) {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		})
		err := New(srv.URL).UpdateCommentContent(context.Background(), 1, "edited")
		require.True(t, store.IsTransport(err))

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Code)
		assert.Equal(t, "Internal server error", se.Message)
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := New(url).DeleteComment(context.Background(), 1)
		assert.True(t, store.IsTransport(err))
	})
}

func TestCreateComment(t *testing.T) {
	parent := 1
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/posts/3/comments", r.URL.Path)

		var req models.CreateCommentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Content)
		require.NotNil(t, req.ParentCommentID)
		assert.Equal(t, 1, *req.ParentCommentID)

		writeJSON(w, http.StatusCreated, models.Comment{ID: 9, PostID: 3, ParentCommentID: req.ParentCommentID, Content: req.Content, AuthorID: 7})
	})

	c := New(srv.URL, WithToken("tok"))
	created, err := c.CreateComment(context.Background(), models.NewComment{
		PostID: 3, ParentCommentID: &parent, Content: "hello", AuthorID: 7, AuthorDisplayName: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, created.ID)
}

func TestLocalValidationSkipsTheServer(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	c := New(srv.URL)

	_, err := c.CreateComment(context.Background(), models.NewComment{PostID: 3, Content: "  ", AuthorID: 7, AuthorDisplayName: "alice"})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = c.CreateComment(context.Background(), models.NewComment{PostID: 3, Content: "hi"})
	assert.ErrorIs(t, err, store.ErrAuth)

	assert.ErrorIs(t, c.UpdateCommentContent(context.Background(), 1, ""), store.ErrValidation)
	assert.Zero(t, calls.Load())
}

func TestDeleteComment_Idempotent(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Comment not found"})
	})
	assert.NoError(t, New(srv.URL).DeleteComment(context.Background(), 4))
}

func TestUserPosts(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/7/posts", r.URL.Path)
		writeJSON(w, http.StatusOK, []models.Post{{ID: 2, Title: "hello", AuthorID: 7}})
	})

	posts, err := New(srv.URL).UserPosts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "hello", posts[0].Title)
}

func TestLoginKeepsToken(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			writeJSON(w, http.StatusOK, models.AuthResponse{Token: "fresh", User: models.User{ID: 7, Username: "alice"}})
		case "/api/me":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
				return
			}
			writeJSON(w, http.StatusOK, models.User{ID: 7, Username: "alice"})
		default:
			http.NotFound(w, r)
		}
	})

	c := New(srv.URL)
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, store.ErrAuth)

	resp, err := c.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, 7, resp.User.ID)
	assert.Equal(t, "fresh", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}
