package thread

import "sync"

// ScrollLock is a reference counted lease on the host's scrolling. The
// onChange hook fires when the first lease is taken and when the last one is
// released.
type ScrollLock struct {
	mu       sync.Mutex
	holders  int
	onChange func(locked bool)
}

func NewScrollLock(onChange func(locked bool)) *ScrollLock {
	return &ScrollLock{onChange: onChange}
}

// Acquire takes a lease. The returned release is safe to call more than
// once.
func (l *ScrollLock) Acquire() (release func()) {
	l.mu.Lock()
	l.holders++
	if l.holders == 1 && l.onChange != nil {
		l.onChange(true)
	}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.holders--
			if l.holders == 0 && l.onChange != nil {
				l.onChange(false)
			}
		})
	}
}

func (l *ScrollLock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holders > 0
}
