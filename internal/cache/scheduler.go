// internal/cache/scheduler.go - Bounded background tile fetch scheduler
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/internal/tile"
)

// Result is delivered to the completion callback when a scheduled fetch
// finishes, successfully or not, for an address still of interest.
type Result struct {
	Source  string
	Address tile.Address
	Key     string
	Lookup  Lookup
}

type job struct {
	src  tile.Source
	addr tile.Address
	key  string
	url  string
}

// Scheduler answers tile requests from the cache and runs the fetches
// it cannot answer on a fixed pool of workers. Requests for the same
// (source, address) coalesce onto one in-flight fetch; completions are
// reported through the callback only while the address is in the
// current interest set. Every fetch failure is transient: the next
// request for the address schedules another attempt, and a failed
// fetch never deletes a stale copy. A miss is permanent only when the
// source itself can never produce the tile (out of range, or a local
// source without the file).
type Scheduler struct {
	cache   *Cache
	fetcher *Fetcher
	onDone  func(Result)
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []job
	inflight map[string]struct{}
	interest map[string]struct{}
	closed   bool
}

// NewScheduler starts a scheduler with the given worker count. onDone
// may be nil when nobody needs completion notifications.
func NewScheduler(c *Cache, f *Fetcher, workers int, onDone func(Result), log *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cache:    c,
		fetcher:  f,
		onDone:   onDone,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// Request answers one tile request without blocking. Local sources
// resolve synchronously; fetched sources answer from the cache and
// schedule background work for misses and stale hits.
func (s *Scheduler) Request(src tile.Source, addr tile.Address) Lookup {
	if !src.InRange(addr) {
		return Lookup{
			Status: StatusMissPermanent,
			Err: internal.NewError(internal.ErrorCodeOutOfBounds,
				fmt.Sprintf("source %q has no tile %s", src.Name(), addr), nil),
		}
	}

	// Tiles that ship on disk are never fetched: present or gone for good.
	if p, ok := src.LocalPath(addr); ok {
		if _, err := os.Stat(p); err != nil {
			return Lookup{
				Status: StatusMissPermanent,
				Err: internal.NewError(internal.ErrorCodeNotFound,
					fmt.Sprintf("source %q has no file for tile %s", src.Name(), addr), err),
			}
		}
		return Lookup{Status: StatusHitFresh, Path: p}
	}

	key := src.CacheKey(addr)

	fetchedAt, exists := s.cache.FetchedAt(key)
	if exists && !s.cache.Stale(fetchedAt, src.Refresh()) {
		return Lookup{Status: StatusHitFresh, Path: s.cache.Path(key)}
	}

	s.enqueue(src, addr, key)

	if exists {
		// Old bytes remain usable while the refresh runs.
		return Lookup{Status: StatusHitStale, Path: s.cache.Path(key)}
	}
	return Lookup{Status: StatusMissFetching}
}

// SetInterest replaces the set of cache keys whose completions should
// be reported. Completions for keys outside the set are dropped; the
// fetched tiles still land in the cache. A nil set means report all.
func (s *Scheduler) SetInterest(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keys == nil {
		s.interest = nil
		return
	}
	s.interest = make(map[string]struct{}, len(keys))
	for _, k := range keys {
		s.interest[k] = struct{}{}
	}
}

// ForceRefresh marks every cached tile stale. The next request for each
// tile returns the old bytes and schedules a re-download; fetches
// already in flight complete as fresh writes.
func (s *Scheduler) ForceRefresh() {
	s.cache.MarkAllStale()
}

// Close stops the workers. Queued jobs that have not started are
// dropped; running fetches are canceled.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.cancel()
	s.cond.Broadcast()
	s.wg.Wait()
}

// enqueue appends a fetch job unless one for the same key is already
// queued or running.
func (s *Scheduler) enqueue(src tile.Source, addr tile.Address, key string) {
	url, ok := src.FetchTarget(addr)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, busy := s.inflight[key]; busy {
		return
	}
	s.inflight[key] = struct{}{}
	s.queue = append(s.queue, job{src: src, addr: addr, key: key, url: url})
	s.cond.Signal()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		j, ok := s.next()
		if !ok {
			return
		}
		s.run(j)
	}
}

// next pops the oldest queued job, blocking until one arrives or the
// scheduler closes.
func (s *Scheduler) next() (job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return job{}, false
	}
	j := s.queue[0]
	s.queue = s.queue[1:]
	return j, true
}

func (s *Scheduler) run(j job) {
	data, err := s.fetcher.Fetch(s.ctx, j.url)

	var lk Lookup
	switch {
	case err == nil:
		if werr := s.cache.Write(j.key, data); werr != nil {
			s.log.Error("tile write failed", "key", j.key, "error", werr)
			lk = Lookup{Status: StatusMissFetching, Err: werr}
		} else {
			lk = Lookup{Status: StatusHitFresh, Path: s.cache.Path(j.key)}
		}
	default:
		// Any stale copy on disk stays; the next request reports it
		// stale and tries again. Even a 404 is retried on the next
		// paint pass: tile servers answer it transiently while a tile
		// renders, and nothing marks an online tile gone for good.
		s.log.Warn("tile fetch failed", "key", j.key, "error", err)
		if _, exists := s.cache.FetchedAt(j.key); exists {
			lk = Lookup{Status: StatusHitStale, Path: s.cache.Path(j.key), Err: err}
		} else {
			lk = Lookup{Status: StatusMissFetching, Err: err}
		}
	}

	s.mu.Lock()
	delete(s.inflight, j.key)
	interested := s.interest == nil
	if !interested {
		_, interested = s.interest[j.key]
	}
	done := s.onDone
	s.mu.Unlock()

	if interested && done != nil {
		done(Result{
			Source:  j.src.Name(),
			Address: j.addr,
			Key:     j.key,
			Lookup:  lk,
		})
	}
}

// Pending reports how many fetches are queued or running, for progress
// display and tests.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
