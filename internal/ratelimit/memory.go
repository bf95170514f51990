package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	windows  map[string]*window
	now      func() time.Time
	cleanupC chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// window представляет текущее окно для конкретного ключа
type window struct {
	start  time.Time
	length time.Duration
	count  int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store. now may be nil. A positive
// cleanupEvery starts a goroutine dropping closed windows; call Stop to end it.
func NewMemoryStore(now func() time.Time, cleanupEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		windows:  make(map[string]*window),
		now:      now,
		cleanupC: make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}

	if cleanupEvery > 0 {
		go s.cleanup(cleanupEvery)
	}

	return s
}

// Incr implements Store.
func (s *MemoryStore) Incr(_ context.Context, key string, length time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	// Окно сбрасывается, только когда прошедшее время строго больше длины
	if !ok || now.Sub(w.start) > w.length {
		w = &window{start: now, length: length}
		s.windows[key] = w
	}
	w.count++

	ttl := w.length - now.Sub(w.start)
	if ttl < 0 {
		ttl = 0
	}

	return w.count, ttl, nil
}

// Len returns the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Stop останавливает cleanup goroutine
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.cleanupC) })
}

// cleanup периодически удаляет закрытые окна для экономии памяти
func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.cleanupC:
			return
		}
	}
}

// Sweep drops windows that have elapsed.
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if now.Sub(w.start) > w.length {
			delete(s.windows, key)
		}
	}
}
