package aicache

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/insighthub/apperr"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultLeaseTTL      = 90 * time.Second
	DefaultPollInterval  = 200 * time.Millisecond
	DefaultFlightTimeout = 60 * time.Second

	metricCacheHit  = "insighthub.ai_cache.hit"
	metricCacheMiss = "insighthub.ai_cache.miss"
)

// ComputeFunc performs the real provider call on a cache miss.
type ComputeFunc func(ctx context.Context) (*Result, error)

type Resolution struct {
	Result *Result
	// Cached is true when the result came from the cache table rather than
	// from a compute call made for this resolution.
	Cached bool
}

type ResolverConfig struct {
	// LeaseTTL must outlive the slowest provider call, otherwise a second
	// worker may take over the lease and call the provider again.
	LeaseTTL     time.Duration
	PollInterval time.Duration
	// FlightTimeout bounds a flight whose first caller has no deadline.
	FlightTimeout time.Duration
}

// Resolver answers "summary for (hash, model)" invoking compute at most once
// per key: concurrent callers in a process share one flight, flights in
// different processes are serialized by the Locker, and the unique index is
// the last line when a lease expired mid computation.
type Resolver struct {
	store  *Store
	locker Locker
	statsd statsd.ClientInterface
	config ResolverConfig
	group  singleflight.Group
}

func NewResolver(store *Store, locker Locker, client statsd.ClientInterface, config ResolverConfig) *Resolver {
	if locker == nil {
		locker = localLocker{}
	}
	if client == nil {
		client = &statsd.NoOpClient{}
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = DefaultLeaseTTL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.FlightTimeout <= 0 {
		config.FlightTimeout = DefaultFlightTimeout
	}
	return &Resolver{store: store, locker: locker, statsd: client, config: config}
}

// Resolve returns the summary for (contentHash, modelVersion). The shared
// flight keeps the first caller's deadline but not its cancellation, so a
// caller going away never fails the others waiting on the same key.
func (r *Resolver) Resolve(ctx context.Context, contentHash string, modelVersion string, compute ComputeFunc) (*Resolution, error) {
	key := modelVersion + "/" + contentHash
	ch := r.group.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := detach(ctx, r.config.FlightTimeout)
		defer cancel()
		return r.resolve(flightCtx, contentHash, modelVersion, key, compute)
	})

	select {
	case <-ctx.Done():
		return nil, apperr.Transient(ctx.Err(), "waiting for ai resolution")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Resolution), nil
	}
}

func detach(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallback)
	}
	return context.WithDeadline(context.WithoutCancel(ctx), deadline)
}

func (r *Resolver) resolve(ctx context.Context, contentHash string, modelVersion string, key string, compute ComputeFunc) (*Resolution, error) {
	tags := []string{"model:" + modelVersion}
	for {
		cached, ok, err := r.store.Get(ctx, contentHash, modelVersion)
		if err != nil {
			return nil, apperr.Transient(err, "ai cache")
		}
		if ok {
			r.statsd.Incr(metricCacheHit, tags, 1)
			return &Resolution{Result: cached, Cached: true}, nil
		}

		release, acquired, err := r.locker.TryAcquire(ctx, key, r.config.LeaseTTL)
		if err != nil {
			return nil, apperr.Transient(err, "ai cache lease")
		}
		if acquired {
			return r.computeWithLease(ctx, contentHash, modelVersion, compute, release)
		}

		select {
		case <-ctx.Done():
			return nil, apperr.Transient(ctx.Err(), "waiting for ai cache lease")
		case <-time.After(r.config.PollInterval):
		}
	}
}

func (r *Resolver) computeWithLease(ctx context.Context, contentHash string, modelVersion string, compute ComputeFunc, release func()) (*Resolution, error) {
	defer release()

	// The previous lease holder may have finished between our read and the
	// lease grant.
	cached, ok, err := r.store.Get(ctx, contentHash, modelVersion)
	if err != nil {
		return nil, apperr.Transient(err, "ai cache")
	}
	if ok {
		return &Resolution{Result: cached, Cached: true}, nil
	}

	r.statsd.Incr(metricCacheMiss, []string{"model:" + modelVersion}, 1)
	result, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	// Persist on a context that survives the caller's deadline, the provider
	// has already been paid for this result.
	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := r.store.PutIfAbsent(writeCtx, contentHash, modelVersion, *result)
	if err != nil {
		Log.WithFields(logrus.Fields{"content_hash": contentHash, "model": modelVersion}).
			Errorf("fail to persist ai cache entry: %v", err)
		return &Resolution{Result: result}, nil
	}
	if status == AlreadyPresent {
		// Lost the race after a lease expiry, serve the winner so every caller
		// observes the same summary.
		winner, ok, err := r.store.Get(writeCtx, contentHash, modelVersion)
		if err != nil || !ok {
			return nil, apperr.Transient(errors.Errorf("cache entry vanished: %v", err), "ai cache")
		}
		return &Resolution{Result: winner, Cached: true}, nil
	}
	return &Resolution{Result: result}, nil
}
