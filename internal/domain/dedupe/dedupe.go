// Package dedupe tracks idempotency keys so that a retried outcome report is
// applied at most once.
package dedupe

import (
	"context"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/ladder/pkg/metrics"
)

// DefaultMaxSize bounds the number of remembered keys.
const DefaultMaxSize = 50000

// State is what a deduper knew about a key before it was claimed.
type State int8

// Key states.
const (
	// Fresh means the key was unknown and is now held in flight.
	Fresh State = iota
	// InFlight means an earlier request holding the key has not settled.
	InFlight
	// Settled means the earlier request was applied.
	Settled
)

func (s State) String() string {
	switch s {
	case InFlight:
		return "in_flight"
	case Settled:
		return "settled"
	default:
		return "fresh"
	}
}

// Deduper records seen keys.
type Deduper interface {
	// Claim atomically reports the state of key and holds it in flight if it
	// was unknown.
	Claim(ctx context.Context, key string) State

	// Settle marks a claimed key as applied.
	Settle(ctx context.Context, key string)

	// Unrecord forgets key so that a failed report can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper keeps keys in an LRU cache. The value is true once the
// key is settled.
type inMemoryDeduper struct {
	maxSize int
	keys    *lru.Cache[string, bool]
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	size := d.maxSize
	if size <= 0 {
		size = math.MaxInt
	}
	keys, err := lru.New[string, bool](size)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	d.keys = keys
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string) State {
	settled, found, _ := d.keys.PeekOrAdd(key, false)
	switch {
	case !found:
		return Fresh
	case settled:
		metrics.RecordDuplicateOutcome()
		return Settled
	default:
		metrics.RecordDuplicateOutcome()
		return InFlight
	}
}

func (d *inMemoryDeduper) Settle(_ context.Context, key string) {
	if d.keys.Contains(key) {
		d.keys.Add(key, true)
	}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.keys.Remove(key)
}

func (d *inMemoryDeduper) Size() int64 {
	return int64(d.keys.Len())
}
