package thread

import (
	"errors"

	"github.com/emilythestrangee/kaen/internal/store"
)

var (
	// ErrBusy is returned while a controller still waits for its previous
	// mutation.
	ErrBusy = errors.New("a request is already in flight")
	// ErrClosed is returned once the view has been torn down.
	ErrClosed = errors.New("thread view closed")
	// ErrUnknownComment means no controller exists for the id.
	ErrUnknownComment = errors.New("comment is not part of this thread")
	// ErrInvalidState means the action is not available in the current mode.
	ErrInvalidState = errors.New("action not available right now")
)

// Message turns err into the short inline text shown next to the control
// that triggered it. NotFound never reaches here on update or delete.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrValidation):
		return "Comment can't be empty."
	case errors.Is(err, store.ErrAuth):
		return "Sign in to do that."
	case errors.Is(err, store.ErrForbidden):
		return "You can only change your own comments."
	case errors.Is(err, store.ErrNotFound):
		return "This comment no longer exists."
	case errors.Is(err, ErrBusy):
		return "Hang on, still saving."
	case errors.Is(err, ErrClosed):
		return "This thread was closed."
	case store.IsTransport(err):
		return "Couldn't reach the server. Try again."
	default:
		return "Something went wrong."
	}
}

// Viewer is the identity the thread is shown to. A nil *Viewer is anonymous.
type Viewer struct {
	ID          int
	DisplayName string
	AvatarURL   string
}

func (v *Viewer) Authenticated() bool {
	return v != nil && v.ID > 0
}

// Owns reports whether v is the author with the given id.
func (v *Viewer) Owns(authorID int) bool {
	return v.Authenticated() && v.ID == authorID
}
