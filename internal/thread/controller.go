package thread

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

// Mode is the interaction state of one comment.
type Mode int

const (
	Viewing Mode = iota
	Editing
	ConfirmingDelete
)

func (m Mode) String() string {
	switch m {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case ConfirmingDelete:
		return "confirming-delete"
	default:
		return "unknown"
	}
}

// Affordances lists the controls a renderer may show for a comment.
type Affordances struct {
	CanEdit          bool `json:"can_edit"`
	CanDelete        bool `json:"can_delete"`
	CanReply         bool `json:"can_reply"`
	CanSubmitEdit    bool `json:"can_submit_edit"`
	CanSubmitReply   bool `json:"can_submit_reply"`
	CanConfirmDelete bool `json:"can_confirm_delete"`
}

// ControllerState is a copy of a controller's state for rendering.
type ControllerState struct {
	Mode        Mode
	EditDraft   string
	Replying    bool
	ReplyDraft  string
	Pending     bool
	Err         error
	Affordances Affordances
}

// Controller owns the edit, reply and delete state of a single comment and
// issues the matching mutation against the store. Successful mutations call
// the invalidate hook instead of touching the tree.
type Controller struct {
	st         store.CommentStore
	viewer     *Viewer
	invalidate func(context.Context)

	mu         sync.Mutex
	comment    models.Comment
	mode       Mode
	editDraft  string
	replying   bool
	replyDraft string
	pending    bool
	err        error
	detached   bool
}

// NewController creates a controller in Viewing mode. invalidate may be nil.
func NewController(c models.Comment, viewer *Viewer, st store.CommentStore, invalidate func(context.Context)) *Controller {
	return &Controller{
		st:         st,
		viewer:     viewer,
		invalidate: invalidate,
		comment:    c,
	}
}

func (c *Controller) Comment() models.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comment
}

// refresh swaps in the latest server copy of the comment. Open drafts stay.
func (c *Controller) refresh(comment models.Comment) {
	c.mu.Lock()
	c.comment = comment
	c.mu.Unlock()
}

// detach stops the controller from writing state or invalidating after the
// view is gone.
func (c *Controller) detach() {
	c.mu.Lock()
	c.detached = true
	c.mu.Unlock()
}

func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ControllerState{
		Mode:        c.mode,
		EditDraft:   c.editDraft,
		Replying:    c.replying,
		ReplyDraft:  c.replyDraft,
		Pending:     c.pending,
		Err:         c.err,
		Affordances: c.affordancesLocked(),
	}
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Err returns the failure of the last mutation, cleared by the next action.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Affordances() Affordances {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.affordancesLocked()
}

func (c *Controller) affordancesLocked() Affordances {
	idle := !c.pending && !c.detached
	owner := c.viewer.Owns(c.comment.AuthorID)
	viewing := c.mode == Viewing
	return Affordances{
		CanEdit:          idle && owner && viewing,
		CanDelete:        idle && owner && viewing,
		CanReply:         idle && c.viewer.Authenticated() && viewing,
		CanSubmitEdit:    idle && owner && c.mode == Editing && notBlank(c.editDraft),
		CanSubmitReply:   idle && c.viewer.Authenticated() && viewing && c.replying && notBlank(c.replyDraft),
		CanConfirmDelete: idle && owner && c.mode == ConfirmingDelete,
	}
}

// guard checks the preconditions shared by every action. Callers hold mu.
func (c *Controller) guard() error {
	if c.detached {
		return ErrClosed
	}
	if c.pending {
		return ErrBusy
	}
	return nil
}

func (c *Controller) requireOwner() error {
	if !c.viewer.Authenticated() {
		return store.ErrAuth
	}
	if !c.viewer.Owns(c.comment.AuthorID) {
		return store.ErrForbidden
	}
	return nil
}

// BeginEdit enters Editing with the buffer set to the current content. The
// reply composer closes but keeps its draft.
func (c *Controller) BeginEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if err := c.requireOwner(); err != nil {
		return err
	}
	if c.mode != Viewing {
		return ErrInvalidState
	}
	c.mode = Editing
	c.editDraft = c.comment.Content
	c.replying = false
	c.err = nil
	return nil
}

func (c *Controller) SetEditDraft(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if c.mode != Editing {
		return ErrInvalidState
	}
	c.editDraft = s
	return nil
}

// CancelEdit discards the buffer.
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if c.mode != Editing {
		return ErrInvalidState
	}
	c.mode = Viewing
	c.editDraft = ""
	c.err = nil
	return nil
}

// SaveEdit sends the buffer as the new content. A blank buffer fails with
// ErrValidation and never reaches the store. On failure the controller stays
// in Editing with the buffer intact.
func (c *Controller) SaveEdit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guard(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.mode != Editing {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if err := c.requireOwner(); err != nil {
		c.mu.Unlock()
		return err
	}
	content := c.editDraft
	if err := store.ValidateContent(content); err != nil {
		c.err = err
		c.mu.Unlock()
		return err
	}
	id := c.comment.ID
	c.pending = true
	c.err = nil
	c.mu.Unlock()

	err := c.st.UpdateCommentContent(ctx, id, content)
	if errors.Is(err, store.ErrNotFound) {
		// already gone; the refetch drops it
		err = nil
	}
	return c.complete(ctx, err, func() {
		c.mode = Viewing
		c.editDraft = ""
	})
}

// ArmDelete is the first step of the two-step delete.
func (c *Controller) ArmDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if err := c.requireOwner(); err != nil {
		return err
	}
	if c.mode != Viewing {
		return ErrInvalidState
	}
	c.mode = ConfirmingDelete
	c.replying = false
	c.err = nil
	return nil
}

func (c *Controller) CancelDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if c.mode != ConfirmingDelete {
		return ErrInvalidState
	}
	c.mode = Viewing
	c.err = nil
	return nil
}

// ConfirmDelete deletes the comment. The node stays in the tree until the
// refetch triggered by the invalidation drops it.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guard(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.mode != ConfirmingDelete {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if err := c.requireOwner(); err != nil {
		c.mu.Unlock()
		return err
	}
	id := c.comment.ID
	c.pending = true
	c.err = nil
	c.mu.Unlock()

	err := c.st.DeleteComment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		err = nil
	}
	return c.complete(ctx, err, func() {
		c.mode = Viewing
	})
}

// OpenReply opens the reply composer, restoring a previous draft.
func (c *Controller) OpenReply() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if !c.viewer.Authenticated() {
		return store.ErrAuth
	}
	if c.mode != Viewing {
		return ErrInvalidState
	}
	c.replying = true
	c.err = nil
	return nil
}

func (c *Controller) SetReplyDraft(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if !c.replying {
		return ErrInvalidState
	}
	c.replyDraft = s
	return nil
}

// CancelReply closes the composer and drops the draft.
func (c *Controller) CancelReply() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if !c.replying {
		return ErrInvalidState
	}
	c.replying = false
	c.replyDraft = ""
	c.err = nil
	return nil
}

// SubmitReply creates a reply whose parent is this comment. The composer
// closes and its draft is cleared only on success.
func (c *Controller) SubmitReply(ctx context.Context) (*models.Comment, error) {
	c.mu.Lock()
	if err := c.guard(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !c.replying || c.mode != Viewing {
		c.mu.Unlock()
		return nil, ErrInvalidState
	}
	if !c.viewer.Authenticated() {
		c.mu.Unlock()
		return nil, store.ErrAuth
	}
	content := c.replyDraft
	if err := store.ValidateContent(content); err != nil {
		c.err = err
		c.mu.Unlock()
		return nil, err
	}
	parent := c.comment.ID
	in := models.NewComment{
		PostID:            c.comment.PostID,
		ParentCommentID:   &parent,
		Content:           content,
		AuthorID:          c.viewer.ID,
		AuthorDisplayName: c.viewer.DisplayName,
		AuthorAvatarURL:   c.viewer.AvatarURL,
	}
	c.pending = true
	c.err = nil
	c.mu.Unlock()

	created, err := c.st.CreateComment(ctx, in)
	if err := c.complete(ctx, err, func() {
		c.replying = false
		c.replyDraft = ""
	}); err != nil {
		return nil, err
	}
	return created, nil
}

// complete records the outcome of a mutation. A detached controller keeps
// its state untouched and does not invalidate.
func (c *Controller) complete(ctx context.Context, err error, onSuccess func()) error {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return err
	}
	c.pending = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		return err
	}
	onSuccess()
	invalidate := c.invalidate
	c.mu.Unlock()

	if invalidate != nil {
		invalidate(ctx)
	}
	return nil
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
