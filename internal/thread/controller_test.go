package thread

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

// authored returns comment id written by viewer 7.
func authored(id int, parent *int) models.Comment {
	c := comment(id, parent)
	c.AuthorID = 7
	c.Content = "original"
	return c
}

var (
	author   = &Viewer{ID: 7, DisplayName: "alice", AvatarURL: "https://example.com/a.png"}
	stranger = &Viewer{ID: 8, DisplayName: "bob"}
)

func counter() (*int32, func(context.Context)) {
	var n int32
	return &n, func(context.Context) { atomic.AddInt32(&n, 1) }
}

func TestController_EditGuardForOtherViewers(t *testing.T) {
	ctx := context.Background()
	m := &mockStore{}
	c := NewController(authored(3, nil), stranger, m, nil)

	aff := c.Affordances()
	assert.False(t, aff.CanEdit)
	assert.False(t, aff.CanDelete)
	assert.True(t, aff.CanReply)

	assert.ErrorIs(t, c.BeginEdit(), store.ErrForbidden)
	assert.ErrorIs(t, c.SetEditDraft("hijacked"), ErrInvalidState)
	assert.ErrorIs(t, c.SaveEdit(ctx), ErrInvalidState)
	assert.ErrorIs(t, c.ArmDelete(), store.ErrForbidden)
	assert.ErrorIs(t, c.ConfirmDelete(ctx), ErrInvalidState)
	assert.Equal(t, Viewing, c.Mode())

	m.AssertNotCalled(t, "UpdateCommentContent", mock.Anything, mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "DeleteComment", mock.Anything, mock.Anything)
}

func TestController_AnonymousViewer(t *testing.T) {
	m := &mockStore{}
	c := NewController(authored(3, nil), nil, m, nil)

	assert.Equal(t, Affordances{}, c.Affordances())
	assert.ErrorIs(t, c.BeginEdit(), store.ErrAuth)
	assert.ErrorIs(t, c.ArmDelete(), store.ErrAuth)
	assert.ErrorIs(t, c.OpenReply(), store.ErrAuth)
	_, err := c.SubmitReply(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	m.AssertExpectations(t)
}

func TestController_SaveEdit(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(authored(3, nil))
	n, invalidate := counter()
	c := NewController(authored(3, nil), author, s, invalidate)

	require.True(t, c.Affordances().CanEdit)
	require.NoError(t, c.BeginEdit())
	assert.Equal(t, "original", c.State().EditDraft)
	assert.Equal(t, Editing, c.Mode())
	assert.False(t, c.Affordances().CanEdit)

	require.NoError(t, c.SetEditDraft("    code block\nchanged"))
	assert.True(t, c.Affordances().CanSubmitEdit)
	require.NoError(t, c.SaveEdit(ctx))

	st := c.State()
	assert.Equal(t, Viewing, st.Mode)
	assert.Empty(t, st.EditDraft)
	assert.NoError(t, st.Err)
	assert.EqualValues(t, 1, atomic.LoadInt32(n))
	assert.Equal(t, []int{3}, s.updates)

	list, _ := s.ListComments(ctx, 1)
	assert.Equal(t, "    code block\nchanged", list[0].Content)
}

func TestController_SaveEditBlankNeverReachesStore(t *testing.T) {
	m := &mockStore{}
	n, invalidate := counter()
	c := NewController(authored(3, nil), author, m, invalidate)

	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetEditDraft("   "))
	assert.False(t, c.Affordances().CanSubmitEdit)

	err := c.SaveEdit(context.Background())
	assert.ErrorIs(t, err, store.ErrValidation)
	assert.Equal(t, Editing, c.Mode())
	assert.Equal(t, "Comment can't be empty.", Message(c.Err()))
	assert.Zero(t, atomic.LoadInt32(n))
	m.AssertNotCalled(t, "UpdateCommentContent", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_SaveEditFailureKeepsBuffer(t *testing.T) {
	m := &mockStore{}
	m.On("UpdateCommentContent", mock.Anything, 3, "new text").
		Return(store.Transport("update comment", errors.New("503"))).Once()
	n, invalidate := counter()
	c := NewController(authored(3, nil), author, m, invalidate)

	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetEditDraft("new text"))
	err := c.SaveEdit(context.Background())

	require.Error(t, err)
	assert.True(t, store.IsTransport(err))
	st := c.State()
	assert.Equal(t, Editing, st.Mode)
	assert.Equal(t, "new text", st.EditDraft)
	assert.False(t, st.Pending)
	assert.Equal(t, "Couldn't reach the server. Try again.", Message(st.Err))
	assert.Zero(t, atomic.LoadInt32(n))
	m.AssertExpectations(t)
}

func TestController_NotFoundCountsAsSuccess(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	n, invalidate := counter()
	c := NewController(authored(3, nil), author, s, invalidate)

	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SaveEdit(ctx))
	assert.Equal(t, Viewing, c.Mode())

	require.NoError(t, c.ArmDelete())
	require.NoError(t, c.ConfirmDelete(ctx))
	assert.Equal(t, Viewing, c.Mode())
	assert.NoError(t, c.Err())
	assert.EqualValues(t, 2, atomic.LoadInt32(n))
}

func TestController_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(authored(1, nil), authored(3, nil))

	for i := 0; i < 2; i++ {
		c := NewController(authored(3, nil), author, s, nil)
		require.NoError(t, c.ArmDelete())
		require.NoError(t, c.ConfirmDelete(ctx))
		assert.NoError(t, c.Err())

		list, err := s.ListComments(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 1, list[0].ID)
	}
	assert.Equal(t, []int{3, 3}, s.deletes)
}

func TestController_TwoStepDelete(t *testing.T) {
	m := &mockStore{}
	c := NewController(authored(3, nil), author, m, nil)

	require.NoError(t, c.ArmDelete())
	assert.Equal(t, ConfirmingDelete, c.Mode())
	aff := c.Affordances()
	assert.True(t, aff.CanConfirmDelete)
	assert.False(t, aff.CanReply)
	assert.ErrorIs(t, c.OpenReply(), ErrInvalidState)

	require.NoError(t, c.CancelDelete())
	assert.Equal(t, Viewing, c.Mode())
	m.AssertNotCalled(t, "DeleteComment", mock.Anything, mock.Anything)

	m.On("DeleteComment", mock.Anything, 3).Return(errors.New("boom")).Once()
	require.NoError(t, c.ArmDelete())
	assert.Error(t, c.ConfirmDelete(context.Background()))
	assert.Equal(t, ConfirmingDelete, c.Mode())
	assert.Equal(t, "Something went wrong.", Message(c.Err()))
	m.AssertExpectations(t)
}

func TestController_ReplyLinksToParent(t *testing.T) {
	ctx := context.Background()
	m := &mockStore{}
	parent := authored(5, nil)
	created := &models.Comment{ID: 6, PostID: 1, ParentCommentID: ptr(5), Content: "me too", AuthorID: 8}
	m.On("CreateComment", mock.Anything, mock.MatchedBy(func(in models.NewComment) bool {
		return in.ParentCommentID != nil && *in.ParentCommentID == 5 &&
			in.PostID == 1 && in.AuthorID == 8 && in.AuthorDisplayName == "bob" && in.Content == "me too"
	})).Return(created, nil).Once()
	n, invalidate := counter()
	c := NewController(parent, stranger, m, invalidate)

	require.NoError(t, c.OpenReply())
	assert.False(t, c.Affordances().CanSubmitReply)
	require.NoError(t, c.SetReplyDraft("me too"))
	assert.True(t, c.Affordances().CanSubmitReply)

	got, err := c.SubmitReply(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	st := c.State()
	assert.False(t, st.Replying)
	assert.Empty(t, st.ReplyDraft)
	assert.EqualValues(t, 1, atomic.LoadInt32(n))
	m.AssertExpectations(t)
}

func TestController_ReplyFailureKeepsComposer(t *testing.T) {
	m := &mockStore{}
	m.On("CreateComment", mock.Anything, mock.Anything).Return(nil, store.ErrAuth).Once()
	c := NewController(authored(5, nil), stranger, m, nil)

	require.NoError(t, c.OpenReply())
	require.NoError(t, c.SetReplyDraft("draft"))
	_, err := c.SubmitReply(context.Background())
	assert.ErrorIs(t, err, store.ErrAuth)

	st := c.State()
	assert.True(t, st.Replying)
	assert.Equal(t, "draft", st.ReplyDraft)
	assert.Equal(t, "Sign in to do that.", Message(st.Err))

	_, err = NewController(authored(5, nil), stranger, m, nil).SubmitReply(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
	m.AssertExpectations(t)
}

func TestController_BlankReplyNeverReachesStore(t *testing.T) {
	m := &mockStore{}
	c := NewController(authored(5, nil), stranger, m, nil)

	require.NoError(t, c.OpenReply())
	_, err := c.SubmitReply(context.Background())
	assert.ErrorIs(t, err, store.ErrValidation)
	assert.True(t, c.State().Replying)
	m.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
}

func TestController_EditingSuppressesReply(t *testing.T) {
	c := NewController(authored(5, nil), author, &mockStore{}, nil)

	require.NoError(t, c.OpenReply())
	require.NoError(t, c.SetReplyDraft("half written"))
	require.NoError(t, c.BeginEdit())
	assert.False(t, c.State().Replying)
	assert.False(t, c.Affordances().CanReply)
	assert.ErrorIs(t, c.OpenReply(), ErrInvalidState)

	require.NoError(t, c.CancelEdit())
	require.NoError(t, c.OpenReply())
	assert.Equal(t, "half written", c.State().ReplyDraft)

	require.NoError(t, c.CancelReply())
	require.NoError(t, c.OpenReply())
	assert.Empty(t, c.State().ReplyDraft)
}

func TestController_OneMutationAtATime(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(authored(3, nil))
	entered, release := s.hold()
	defer release()
	c := NewController(authored(3, nil), author, s, nil)

	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetEditDraft("first"))

	done := make(chan error, 1)
	go func() { done <- c.SaveEdit(ctx) }()
	<-entered

	assert.True(t, c.Pending())
	assert.False(t, c.Affordances().CanSubmitEdit)
	assert.ErrorIs(t, c.SaveEdit(ctx), ErrBusy)
	assert.ErrorIs(t, c.SetEditDraft("second"), ErrBusy)
	assert.ErrorIs(t, c.CancelEdit(), ErrBusy)

	release()
	require.NoError(t, <-done)
	assert.False(t, c.Pending())
	assert.Equal(t, []int{3}, s.updates)
}

func TestController_DetachedCompletionIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(authored(3, nil))
	entered, release := s.hold()
	n, invalidate := counter()
	c := NewController(authored(3, nil), author, s, invalidate)

	require.NoError(t, c.ArmDelete())
	done := make(chan error, 1)
	go func() { done <- c.ConfirmDelete(ctx) }()
	<-entered

	c.detach()
	release()
	require.NoError(t, <-done)

	assert.Zero(t, atomic.LoadInt32(n))
	assert.Equal(t, ConfirmingDelete, c.Mode())
	assert.ErrorIs(t, c.ArmDelete(), ErrClosed)
	assert.Equal(t, Affordances{}, c.Affordances())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "viewing", Viewing.String())
	assert.Equal(t, "editing", Editing.String())
	assert.Equal(t, "confirming-delete", ConfirmingDelete.String())
	assert.Equal(t, "unknown", Mode(42).String())
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "This comment no longer exists.", Message(store.ErrNotFound))
	assert.Equal(t, "You can only change your own comments.", Message(store.ErrForbidden))
	assert.Equal(t, "Hang on, still saving.", Message(ErrBusy))
	assert.Equal(t, "This thread was closed.", Message(ErrClosed))
}
