package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/computegraph/internal/cache"
)

// DefaultProgramCacheSize is the program limit of NewProgramCache(0).
const DefaultProgramCacheSize = 256

// ProgramKey identifies a compiled program. Equal hash keys mean equal
// effective sources, so programs are shared across graphs and kernels.
type ProgramKey struct {
	Format  string
	HashKey string
}

func (k ProgramKey) String() string { return k.Format + "/" + k.HashKey }

// ProgramCache stores compiled programs and collapses concurrent compiles of
// the same key into one.
//
// ProgramCache is safe for concurrent use.
type ProgramCache struct {
	programs *cache.Cache[ProgramKey, *Program]
	group    singleflight.Group
	compiles atomic.Uint64

	// mu orders DoChan against the end of a compile so inflight names
	// exactly the keys whose singleflight call is still registered.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewProgramCache creates a cache holding at most limit programs.
// A limit of 0 uses DefaultProgramCacheSize.
func NewProgramCache(limit int) *ProgramCache {
	if limit <= 0 {
		limit = DefaultProgramCacheSize
	}
	return &ProgramCache{
		programs: cache.New[ProgramKey, *Program](limit),
		inflight: make(map[string]struct{}),
	}
}

// Lookup returns a cached program.
func (c *ProgramCache) Lookup(key ProgramKey) (*Program, bool) {
	return c.programs.Get(key)
}

// GetOrCompile returns the cached program for key, or runs compile. Callers
// racing on the same key share one compile; hit reports that this caller did
// not compile. Failed compiles are not cached.
//
// A cancelled caller that started the compile waits for compile to return,
// so nothing it started outlives it. Callers that joined leave at once. If
// the compile a caller joined is cancelled by its own initiator, the caller
// retries with its own context.
func (c *ProgramCache) GetOrCompile(ctx context.Context, key ProgramKey, compile func(context.Context) (*Program, error)) (prog *Program, hit bool, err error) {
	for {
		if p, ok := c.programs.Get(key); ok {
			return p, true, nil
		}

		var ran bool
		ch, leader := c.start(ctx, key, compile, &ran)

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			if leader {
				<-ch
			}
			return nil, false, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		if res.Err != nil {
			if !ran && errors.Is(res.Err, ErrCancelled) && ctx.Err() == nil {
				continue
			}
			return nil, false, res.Err
		}
		return res.Val.(*Program), !ran, nil
	}
}

// start joins or begins the compile of key. leader reports that the flight
// belongs to this caller; *ran is set once compile actually runs.
func (c *ProgramCache) start(ctx context.Context, key ProgramKey, compile func(context.Context) (*Program, error), ran *bool) (ch <-chan singleflight.Result, leader bool) {
	name := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	_, joined := c.inflight[name]
	if !joined {
		c.inflight[name] = struct{}{}
	}
	ch = c.group.DoChan(name, func() (any, error) {
		defer c.done(name)
		// The previous flight may have stored it after our miss.
		if p, ok := c.programs.Get(key); ok {
			return p, nil
		}
		*ran = true
		c.compiles.Add(1)
		p, err := compile(ctx)
		if err != nil {
			return nil, err
		}
		c.programs.Set(key, p)
		return p, nil
	})
	return ch, !joined
}

func (c *ProgramCache) done(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, name)
	c.group.Forget(name)
}

// Clear drops every cached program.
func (c *ProgramCache) Clear() { c.programs.Clear() }

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int { return c.programs.Len() }

// Compiles returns how many compiles the cache has started.
func (c *ProgramCache) Compiles() uint64 { return c.compiles.Load() }

// Stats returns lookup statistics of the underlying cache.
func (c *ProgramCache) Stats() cache.Stats { return c.programs.Stats() }
