package thread

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

// memStore is an in-memory CommentStore with the backend's semantics.
type memStore struct {
	mu       sync.Mutex
	comments []models.Comment
	nextID   int

	listErr   error
	mutateErr error
	// gate, when set, holds every mutation until it is closed.
	gate    chan struct{}
	entered chan struct{}

	lists   int
	creates []models.NewComment
	updates []int
	deletes []int
}

func newMemStore(comments ...models.Comment) *memStore {
	s := &memStore{nextID: 1}
	for _, c := range comments {
		s.comments = append(s.comments, c)
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	return s
}

func (s *memStore) wait() {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
}

// hold makes the next mutations block until the returned release is called.
// entered receives once per mutation that reaches the store.
func (s *memStore) hold() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.entered = make(chan struct{}, 8)
	gate := s.gate
	var once sync.Once
	return s.entered, func() { once.Do(func() { close(gate) }) }
}

func (s *memStore) ListComments(_ context.Context, postID int) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) CreateComment(_ context.Context, in models.NewComment) (*models.Comment, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = append(s.creates, in)
	if s.mutateErr != nil {
		return nil, s.mutateErr
	}
	if err := store.ValidateNewComment(in); err != nil {
		return nil, err
	}
	c := models.Comment{
		ID:                s.nextID,
		PostID:            in.PostID,
		ParentCommentID:   in.ParentCommentID,
		Content:           in.Content,
		AuthorID:          in.AuthorID,
		AuthorDisplayName: in.AuthorDisplayName,
		AuthorAvatarURL:   in.AuthorAvatarURL,
		CreatedAt:         epoch.Add(time.Duration(s.nextID) * time.Minute),
		UpdatedAt:         epoch.Add(time.Duration(s.nextID) * time.Minute),
	}
	s.nextID++
	s.comments = append(s.comments, c)
	return &c, nil
}

func (s *memStore) UpdateCommentContent(_ context.Context, id int, content string) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, id)
	if s.mutateErr != nil {
		return s.mutateErr
	}
	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments[i].Content = content
			s.comments[i].UpdatedAt = s.comments[i].CreatedAt.Add(time.Hour)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) DeleteComment(_ context.Context, id int) error {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	if s.mutateErr != nil {
		return s.mutateErr
	}
	for i := range s.comments {
		if s.comments[i].ID == id {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func (s *memStore) setListErr(err error) {
	s.mu.Lock()
	s.listErr = err
	s.mu.Unlock()
}

// mockStore records calls for assertions on what was (not) issued.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListComments(ctx context.Context, postID int) ([]models.Comment, error) {
	args := m.Called(ctx, postID)
	if v := args.Get(0); v != nil {
		return v.([]models.Comment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CreateComment(ctx context.Context, in models.NewComment) (*models.Comment, error) {
	args := m.Called(ctx, in)
	if v := args.Get(0); v != nil {
		return v.(*models.Comment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) UpdateCommentContent(ctx context.Context, id int, content string) error {
	return m.Called(ctx, id, content).Error(0)
}

func (m *mockStore) DeleteComment(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}
