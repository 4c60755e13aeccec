// Package cached memoises zonal reductions in an in-process LRU and,
// optionally, in Redis. Reductions over the same band, territory and
// parameters always return the same groups, so results never need
// invalidation; the Redis TTL only bounds storage.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/area"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/cache/keys"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/observability"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/geom"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/zonal"
)

// Store is the shared tier. *redisstore.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Options struct {
	LRUSize   int
	Store     Store
	TTL       time.Duration
	OpTimeout time.Duration
	Logger    *slog.Logger
}

type Engine struct {
	next      zonal.Engine
	lru       *lru.Cache[string, area.Grouped]
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	log       *slog.Logger
}

func New(next zonal.Engine, opts Options) (*Engine, error) {
	if next == nil {
		return nil, errors.New("cached: next engine is required")
	}
	if opts.LRUSize <= 0 {
		opts.LRUSize = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 150 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c, err := lru.New[string, area.Grouped](opts.LRUSize)
	if err != nil {
		return nil, fmt.Errorf("cached: lru: %w", err)
	}
	return &Engine{
		next:      next,
		lru:       c,
		store:     opts.Store,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		log:       opts.Logger,
	}, nil
}

// Key returns the cache key of req.
func Key(req zonal.Request) (string, error) {
	fp, err := geom.Fingerprint(req.Territory.Geometry)
	if err != nil {
		return "", err
	}
	return keys.Zonal{
		Asset:       req.Image.Asset,
		Band:        req.Image.Band,
		Territory:   string(req.Territory.ID),
		Fingerprint: fp,
		Region:      req.Region.String(),
		Scale:       req.Scale,
		MaxPixels:   req.MaxPixels,
		Factor:      req.Factor,
	}.Key(), nil
}

func (e *Engine) ReduceGroupedArea(ctx context.Context, req zonal.Request) (area.Grouped, error) {
	key, err := Key(req)
	if err != nil {
		// uncacheable; go straight to the engine
		return e.next.ReduceGroupedArea(ctx, req)
	}

	if g, ok := e.lru.Get(key); ok {
		observability.IncZonalCache("lru", "hit")
		return g, nil
	}
	observability.IncZonalCache("lru", "miss")

	if g, ok := e.fromStore(ctx, key); ok {
		e.lru.Add(key, g)
		return g, nil
	}

	g, err := e.next.ReduceGroupedArea(ctx, req)
	if err != nil {
		return area.Grouped{}, err
	}
	e.lru.Add(key, g)
	e.toStore(ctx, key, g)
	return g, nil
}

func (e *Engine) fromStore(ctx context.Context, key string) (area.Grouped, bool) {
	if e.store == nil {
		return area.Grouped{}, false
	}
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	raw, ok, err := e.store.Get(opCtx, key)
	switch {
	case err != nil:
		observability.IncZonalCache("redis", "error")
		e.log.WarnContext(ctx, "zonal cache read failed", "key", key, "err", err)
		return area.Grouped{}, false
	case !ok:
		observability.IncZonalCache("redis", "miss")
		return area.Grouped{}, false
	}

	var g area.Grouped
	if err := json.Unmarshal(raw, &g); err != nil {
		observability.IncZonalCache("redis", "error")
		e.log.WarnContext(ctx, "zonal cache entry undecodable", "key", key, "err", err)
		return area.Grouped{}, false
	}
	observability.IncZonalCache("redis", "hit")
	return g, true
}

func (e *Engine) toStore(ctx context.Context, key string, g area.Grouped) {
	if e.store == nil {
		return
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return
	}
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opTimeout)
	defer cancel()
	if err := e.store.Set(opCtx, key, raw, e.ttl); err != nil {
		e.log.WarnContext(ctx, "zonal cache write failed", "key", key, "err", err)
	}
}
