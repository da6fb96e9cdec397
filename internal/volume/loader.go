package volume

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheFrames = 8

// Loader fetches timepoints from a Source in the background and keeps the
// most recently used ones resident. It is safe for concurrent use.
type Loader struct {
	src      Source
	latency  time.Duration
	onLoaded func(t int)
	onFailed func(t int, err error)
	log      *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache

	group    singleflight.Group
	inflight sync.WaitGroup
	hits     atomic.Uint64
	misses   atomic.Uint64
	loads    atomic.Uint64
}

type LoaderOption func(*Loader)

// WithLatency delays every load, simulating a remote or slow store.
func WithLatency(d time.Duration) LoaderOption {
	return func(l *Loader) { l.latency = d }
}

// WithOnLoaded sets a hook called once per completed load, on the loading
// goroutine.
func WithOnLoaded(fn func(t int)) LoaderOption {
	return func(l *Loader) { l.onLoaded = fn }
}

// WithOnFailed sets a hook called when a load fails for any reason other
// than cancellation, on the loading goroutine.
func WithOnFailed(fn func(t int, err error)) LoaderOption {
	return func(l *Loader) { l.onFailed = fn }
}

func WithLoaderLogger(lg *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.log = lg
		}
	}
}

// SetOnLoaded replaces the load hook. It must be called before the first Request.
func (l *Loader) SetOnLoaded(fn func(t int)) { l.onLoaded = fn }

// SetOnFailed replaces the failure hook. It must be called before the first Request.
func (l *Loader) SetOnFailed(fn func(t int, err error)) { l.onFailed = fn }

func NewLoader(src Source, maxFrames int, opts ...LoaderOption) *Loader {
	if maxFrames <= 0 {
		maxFrames = DefaultCacheFrames
	}
	l := &Loader{
		src:   src,
		cache: lru.New(maxFrames),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) Dims() Dims { return l.src.Dims() }

// Ready reports whether timepoint t is resident.
func (l *Loader) Ready(t int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache.Get(t)
	return ok
}

// Frame returns the resident data for t.
func (l *Loader) Frame(t int) ([]byte, bool) {
	l.mu.Lock()
	v, ok := l.cache.Get(t)
	l.mu.Unlock()
	if !ok {
		l.misses.Add(1)
		return nil, false
	}
	l.hits.Add(1)
	return v.([]byte), true
}

// Request starts loading t unless it is already resident. Concurrent
// requests for the same timepoint share one load.
func (l *Loader) Request(ctx context.Context, t int) {
	if l.Ready(t) {
		return
	}
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		_, err, _ := l.group.Do(strconv.Itoa(t), func() (interface{}, error) {
			return l.load(ctx, t)
		})
		if err != nil && ctx.Err() == nil {
			l.log.Warn("frame load failed", "t", t, "err", err)
		}
	}()
}

// Prefetch requests n timepoints after t, wrapping at the end of the series.
func (l *Loader) Prefetch(ctx context.Context, t, n int) {
	total := l.src.Dims().T
	for i := 1; i <= n && i < total; i++ {
		l.Request(ctx, (t+i)%total)
	}
}

// Wait blocks until every outstanding request has finished.
func (l *Loader) Wait() { l.inflight.Wait() }

func (l *Loader) load(ctx context.Context, t int) ([]byte, error) {
	if v, ok := l.peek(t); ok {
		return v, nil
	}
	if l.latency > 0 {
		timer := time.NewTimer(l.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	start := time.Now()
	data, err := l.src.Frame(ctx, t)
	if err != nil {
		err = fmt.Errorf("load t=%d: %w", t, err)
		if l.onFailed != nil && ctx.Err() == nil {
			l.onFailed(t, err)
		}
		return nil, err
	}

	l.mu.Lock()
	l.cache.Add(t, data)
	l.mu.Unlock()
	l.loads.Add(1)
	l.log.Debug("frame resident", "t", t, "bytes", len(data), "took", time.Since(start))

	if l.onLoaded != nil {
		l.onLoaded(t)
	}
	return data, nil
}

func (l *Loader) peek(t int) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.cache.Get(t)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// LoaderStats summarises cache behaviour.
type LoaderStats struct {
	Resident      int
	ResidentBytes uint64
	Hits          uint64
	Misses        uint64
	Loads         uint64
}

func (l *Loader) Stats() LoaderStats {
	l.mu.Lock()
	n := l.cache.Len()
	l.mu.Unlock()
	return LoaderStats{
		Resident:      n,
		ResidentBytes: uint64(n) * uint64(l.src.Dims().FrameBytes()),
		Hits:          l.hits.Load(),
		Misses:        l.misses.Load(),
		Loads:         l.loads.Load(),
	}
}
