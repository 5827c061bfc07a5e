package thread

import (
	"context"
	"errors"
	"sync"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/markdown"
	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

type options struct {
	variant    Variant
	cache      cache.Store
	scrollLock *ScrollLock
	md         *markdown.Processor
	policy     *Policy
}

type Option func(*options)

func WithVariant(v Variant) Option {
	return func(o *options) { o.variant = v }
}

// WithCache shares a comment cache between views.
func WithCache(c cache.Store) Option {
	return func(o *options) { o.cache = c }
}

// WithScrollLock sets the lock a scroll locking variant holds while open.
func WithScrollLock(l *ScrollLock) Option {
	return func(o *options) { o.scrollLock = l }
}

func WithMarkdown(p *markdown.Processor) Option {
	return func(o *options) { o.md = p }
}

// WithPolicy overrides the variant's synchronization policy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = &p }
}

// View is the mounted discussion of one post: the synchronizer, one
// controller per comment and the renderer for the chosen variant.
type View struct {
	postID   int
	viewer   *Viewer
	st       store.CommentStore
	sync     *Synchronizer
	renderer *Renderer
	release  func()

	mu          sync.Mutex
	controllers map[int]*Controller
	subs        map[int]func(Page)
	nextSub     int
	posting     bool
	closed      bool
	closeOnce   sync.Once
}

var errNoStore = errors.New("thread: nil comment store")

// Mount loads the thread of postID for viewer (nil for anonymous) and starts
// polling when the variant asks for it. A failed initial load does not fail
// the mount: the page shows a placeholder until a refresh or poll succeeds.
// Mount fails only when ctx ends before the first load completes.
func Mount(ctx context.Context, postID int, viewer *Viewer, st store.CommentStore, opts ...Option) (*View, error) {
	if st == nil {
		return nil, errNoStore
	}
	o := options{variant: InlineVariant}
	for _, opt := range opts {
		opt(&o)
	}
	policy := o.variant.Policy
	if o.policy != nil {
		policy = *o.policy
	}

	v := &View{
		postID:      postID,
		viewer:      viewer,
		st:          st,
		sync:        NewSynchronizer(postID, st, o.cache, policy),
		renderer:    NewRenderer(o.variant, o.md),
		controllers: make(map[int]*Controller),
		subs:        make(map[int]func(Page)),
	}
	if o.variant.LockScroll {
		lock := o.scrollLock
		if lock == nil {
			lock = NewScrollLock(nil)
		}
		v.release = lock.Acquire()
	}
	v.sync.Subscribe(v.apply)

	if err := v.sync.Load(ctx); err != nil {
		if ctx.Err() != nil {
			v.Close()
			return nil, ctx.Err()
		}
		logger.Log.Warn("initial comment load failed",
			"component", "thread_view",
			"post_id", postID,
			"error", err)
	}
	v.sync.Start(ctx)
	return v, nil
}

func (v *View) PostID() int { return v.postID }

func (v *View) Viewer() *Viewer { return v.viewer }

func (v *View) Variant() Variant { return v.renderer.Variant() }

func (v *View) Snapshot() Snapshot { return v.sync.Snapshot() }

// Page renders the current snapshot. It never waits on the network.
func (v *View) Page() Page {
	return v.render(v.sync.Snapshot())
}

func (v *View) render(snap Snapshot) Page {
	return v.renderer.Render(snap, v.viewer, v.lookup)
}

func (v *View) lookup(id int) *Controller {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controllers[id]
}

// Controller returns the controller of comment id.
func (v *View) Controller(id int) (*Controller, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}
	c, ok := v.controllers[id]
	if !ok {
		return nil, ErrUnknownComment
	}
	return c, nil
}

// Post creates a new root comment from the thread's own composer.
func (v *View) Post(ctx context.Context, content string) (*models.Comment, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	if v.posting {
		v.mu.Unlock()
		return nil, ErrBusy
	}
	if !v.viewer.Authenticated() {
		v.mu.Unlock()
		return nil, store.ErrAuth
	}
	if err := store.ValidateContent(content); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	v.posting = true
	v.mu.Unlock()

	created, err := v.st.CreateComment(ctx, models.NewComment{
		PostID:            v.postID,
		Content:           content,
		AuthorID:          v.viewer.ID,
		AuthorDisplayName: v.viewer.DisplayName,
		AuthorAvatarURL:   v.viewer.AvatarURL,
	})

	v.mu.Lock()
	v.posting = false
	closed := v.closed
	v.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !closed {
		v.invalidate(ctx)
	}
	return created, nil
}

// Refresh refetches the thread now.
func (v *View) Refresh(ctx context.Context) error {
	if v.isClosed() {
		return ErrClosed
	}
	return v.sync.Refresh(ctx)
}

// Subscribe calls fn with a freshly rendered page after every applied
// snapshot. Controller state changes alone do not notify.
func (v *View) Subscribe(fn func(Page)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

// Close stops polling, detaches every controller and releases the scroll
// lock. It is safe to call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		for id, c := range v.controllers {
			c.detach()
			delete(v.controllers, id)
		}
		v.subs = map[int]func(Page){}
		v.mu.Unlock()

		v.sync.Stop()
		if v.release != nil {
			v.release()
		}
	})
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// invalidate is the hook controllers call after a successful mutation.
func (v *View) invalidate(ctx context.Context) {
	if err := v.sync.Invalidate(ctx); err != nil && !errors.Is(err, ErrClosed) {
		logger.Log.Debug("refetch after mutation failed",
			"component", "thread_view",
			"post_id", v.postID,
			"error", err)
	}
}

// apply reconciles controllers with a new snapshot: new comments get one,
// vanished comments lose theirs, survivors keep their drafts.
func (v *View) apply(snap Snapshot) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if snap.Loaded {
		seen := make(map[int]struct{}, len(snap.Comments))
		for _, c := range snap.Comments {
			seen[c.ID] = struct{}{}
			if ctrl, ok := v.controllers[c.ID]; ok {
				ctrl.refresh(c)
				continue
			}
			v.controllers[c.ID] = NewController(c, v.viewer, v.st, v.invalidate)
		}
		for id, ctrl := range v.controllers {
			if _, ok := seen[id]; !ok {
				ctrl.detach()
				delete(v.controllers, id)
			}
		}
	}
	subs := make([]func(Page), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	if len(subs) == 0 {
		return
	}
	page := v.render(snap)
	for _, fn := range subs {
		fn(page)
	}
}
