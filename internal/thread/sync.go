package thread

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/emilythestrangee/kaen/internal/cache"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
)

const (
	reasonLoad       = "load"
	reasonPoll       = "poll"
	reasonRefresh    = "refresh"
	reasonInvalidate = "invalidate"
)

var refreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kaen_thread_refresh_total",
		Help: "Comment collection fetches by trigger and outcome",
	},
	[]string{"reason", "outcome"},
)

// Policy decides when a post's comments are fetched again. A zero
// PollInterval disables polling; the thread then only refetches after local
// mutations and manual refreshes.
type Policy struct {
	PollInterval time.Duration
}

func (p Policy) Polling() bool {
	return p.PollInterval > 0
}

// Snapshot is one applied server state of a post's discussion. Tree is built
// fresh for every snapshot and must be treated as read only.
type Snapshot struct {
	PostID    int
	Comments  []models.Comment
	Tree      []*CommentNode
	Version   uint64
	FetchedAt time.Time
	Loaded    bool
	// Err is set only while nothing has been loaded yet.
	Err error
}

// Synchronizer keeps the flat comment collection of one post in a cache and
// publishes a rebuilt tree whenever a fetch completes.
type Synchronizer struct {
	postID int
	st     store.CommentStore
	cache  cache.Store
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	snap    Snapshot
	issued  uint64
	applied uint64
	subs    map[int]func(Snapshot)
	nextSub int
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSynchronizer creates a synchronizer for postID. A nil cache gets an
// in-memory one.
func NewSynchronizer(postID int, st store.CommentStore, c cache.Store, policy Policy) *Synchronizer {
	if c == nil {
		c = cache.NewMemory(0)
	}
	return &Synchronizer{
		postID: postID,
		st:     st,
		cache:  c,
		policy: policy,
		now:    time.Now,
		snap:   Snapshot{PostID: postID, Tree: []*CommentNode{}, Comments: []models.Comment{}},
		subs:   make(map[int]func(Snapshot)),
	}
}

func (s *Synchronizer) Policy() Policy {
	return s.policy
}

// Load performs the initial fetch, using a cached collection when one exists.
func (s *Synchronizer) Load(ctx context.Context) error {
	return s.fetch(ctx, reasonLoad, true)
}

// Refresh fetches from the store, bypassing the cache.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	return s.fetch(ctx, reasonRefresh, false)
}

// Invalidate drops the cached collection and refetches it.
func (s *Synchronizer) Invalidate(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, s.postID); err != nil {
		logger.Log.Warn("comment cache invalidation failed",
			"component", "thread_sync",
			"post_id", s.postID,
			"error", err)
	}
	return s.fetch(ctx, reasonInvalidate, false)
}

// Start launches the polling loop if the policy asks for one. It returns
// immediately; Stop ends the loop.
func (s *Synchronizer) Start(ctx context.Context) {
	if !s.policy.Polling() {
		return
	}
	s.mu.Lock()
	if s.stopped || s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	ticker := time.NewTicker(s.policy.PollInterval)
	logger.Log.Debug("started comment polling",
		"component", "thread_sync",
		"post_id", s.postID,
		"interval", s.policy.PollInterval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.fetch(ctx, reasonPoll, false); err != nil && !errors.Is(err, ErrClosed) {
					// stale data stays on screen, next tick retries
					logger.Log.Debug("comment poll failed",
						"component", "thread_sync",
						"post_id", s.postID,
						"error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends polling and waits for the loop to exit. Fetches that complete
// afterwards are discarded. It must not be called from a subscriber.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.subs = map[int]func(Snapshot){}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to be called with every applied snapshot. The
// returned func unsubscribes.
func (s *Synchronizer) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Synchronizer) fetch(ctx context.Context, reason string, useCache bool) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrClosed
	}
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	var comments []models.Comment
	hit := false
	if useCache {
		cached, ok, err := s.cache.Get(ctx, s.postID)
		if err != nil {
			logger.Log.Warn("comment cache read failed",
				"component", "thread_sync",
				"post_id", s.postID,
				"error", err)
		}
		comments, hit = cached, ok && err == nil
	}

	if !hit {
		gen, genErr := s.cache.Generation(ctx, s.postID)
		list, err := s.st.ListComments(ctx, s.postID)
		if err != nil {
			return s.fail(seq, reason, err)
		}
		if list == nil {
			list = []models.Comment{}
		}
		comments = list
		if genErr == nil {
			// an Invalidate since gen means comments may predate a mutation
			_, genErr = s.cache.Fill(ctx, s.postID, gen, comments)
		}
		if genErr != nil {
			logger.Log.Warn("comment cache write failed",
				"component", "thread_sync",
				"post_id", s.postID,
				"error", genErr)
		}
	}

	s.apply(seq, reason, comments, BuildCommentTree(comments))
	return nil
}

func (s *Synchronizer) apply(seq uint64, reason string, comments []models.Comment, tree []*CommentNode) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		refreshTotal.WithLabelValues(reason, "discarded").Inc()
		return
	}
	if seq < s.applied {
		// a later fetch already landed
		s.mu.Unlock()
		refreshTotal.WithLabelValues(reason, "stale").Inc()
		return
	}
	s.applied = seq
	s.snap = Snapshot{
		PostID:    s.postID,
		Comments:  comments,
		Tree:      tree,
		Version:   s.snap.Version + 1,
		FetchedAt: s.now(),
		Loaded:    true,
	}
	snap, subs := s.snap, s.subscribersLocked()
	s.mu.Unlock()

	refreshTotal.WithLabelValues(reason, "ok").Inc()
	for _, fn := range subs {
		fn(snap)
	}
}

// fail records a fetch error. Once anything has been loaded the error leaves
// the snapshot alone.
func (s *Synchronizer) fail(seq uint64, reason string, err error) error {
	refreshTotal.WithLabelValues(reason, "error").Inc()

	s.mu.Lock()
	if s.stopped || s.snap.Loaded || seq < s.applied {
		s.mu.Unlock()
		return err
	}
	s.applied = seq
	s.snap.Err = err
	s.snap.Version++
	snap, subs := s.snap, s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return err
}

func (s *Synchronizer) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
