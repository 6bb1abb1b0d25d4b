// Package miner implements the fingerprint-search loop and worker pool
// around the signature-exploitation engine: one goroutine per worker
// mutates its own private document buffers, calls into internal/fastsig,
// and tests every resulting identifier against the caller's regex.
package miner

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vanitydid/plcminer/internal/curve"
	"github.com/vanitydid/plcminer/internal/didkey"
	"github.com/vanitydid/plcminer/internal/fastsig"
	"github.com/vanitydid/plcminer/internal/plcop"
)

// MetricUpdateInterval is how many outer-loop iterations a worker performs
// between throughput-meter updates, amortizing the update's cost across a
// batch of signature generations rather than marking on every iteration.
const MetricUpdateInterval = 1000

// Match is a winning (signed operation, identifier) pair forwarded to the
// submission channel.
type Match struct {
	Op  plcop.SignedCreateOp
	DID string
}

// Config is everything a Pool needs to run. Table, Curve and Buffers are
// treated as immutable and shared read-only across every worker: Buffers is
// cloned once per worker at startup, and Table/Curve are never mutated
// after GenerateTable returns.
type Config struct {
	Buffers *plcop.Buffers
	Table   []fastsig.Entry
	Curve   curve.Curve
	Regex   *regexp.Regexp
	Workers int
	Logger  *zap.Logger
}

// Pool runs Config.Workers goroutines, each independently searching for a
// document whose identifier matches Config.Regex, and fans winning matches
// into a single channel.
type Pool struct {
	cfg     Config
	meter   metrics.Meter
	matches chan Match
}

// NewPool constructs a Pool. The returned pool's Meter is already ticking
// (rcrowley/go-metrics runs a background EWMA updater for every meter
// created with NewMeter), so Meter().RateMean()/Rate1() are meaningful as
// soon as Run starts feeding it marks.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{
		cfg:     cfg,
		meter:   metrics.NewMeter(),
		matches: make(chan Match),
	}
}

// Matches returns the channel winning matches are sent on. The channel is
// unbuffered, and Run closes it once every worker has exited (see Run).
func (p *Pool) Matches() <-chan Match {
	return p.matches
}

// Meter exposes the throughput meter so a reporter can read Rate1()/
// RateMean() periodically without coupling to the worker implementation.
func (p *Pool) Meter() metrics.Meter {
	return p.meter
}

// Run starts every worker and blocks until they all exit, which happens
// when ctx is canceled (cooperative shutdown — spec.md's atomic shutdown
// flag, realized here as ctx.Done(), polled at the top of each worker's
// outer loop and while a worker waits to send on Matches). A worker blocks
// on each send until the consumer receives it; a consumer that stops
// receiving is not detected, and its workers stay blocked until ctx is
// canceled. It returns the first non-nil worker error, if any.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < p.cfg.Workers; w++ {
		workerIdx := uint64(w)
		g.Go(func() error {
			return p.runWorker(gctx, workerIdx)
		})
	}

	err := g.Wait()
	close(p.matches)
	return err
}

func (p *Pool) runWorker(ctx context.Context, workerIdx uint64) error {
	bufs := p.cfg.Buffers.Clone()
	logger := p.cfg.Logger.With(zap.Uint64("worker", workerIdx))

	var i uint64
	var sigsSinceMark int64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		counter := hexCounter(workerIdx, i)
		copy(bufs.Unsigned[bufs.UnsignedIndex:bufs.UnsignedIndex+32], counter)
		copy(bufs.Signed[bufs.SignedIndex:bufs.SignedIndex+32], counter)

		sigs := fastsig.GenerateSignatures(bufs.Unsigned, p.cfg.Table, p.cfg.Curve)

		for _, sig := range sigs {
			copy(bufs.Signed[bufs.SignedSigIdx:bufs.SignedSigIdx+86], sig)

			hash := sha256.Sum256(bufs.Signed)
			did := didkey.EncodeDID(hash[:])
			suffix := strings.TrimPrefix(did, "did:plc:")

			if p.cfg.Regex.MatchString(suffix) {
				match := Match{
					Op:  signedOpForMatch(bufs.SignedOp, counter, sig),
					DID: did,
				}
				logger.Info("candidate matched", zap.String("did", did))

				select {
				case p.matches <- match:
				case <-ctx.Done():
					return nil
				}
			}
		}

		sigsSinceMark += int64(len(p.cfg.Table))
		i++

		if i%MetricUpdateInterval == 0 {
			p.meter.Mark(sigsSinceMark)
			sigsSinceMark = 0
		}
	}
}

// hexCounter renders worker index and sequence into the 32-character
// lowercase hex encoding of a 128-bit value with workerIdx in the high 32
// bits and i in the low 96 bits, preserving the partitioning that keeps
// parallel workers from ever duplicating a counter (spec.md §9 Open
// Question (b)). i is a uint64, which always fits in the low 96 bits, so
// the split reduces to two 64-bit halves: the high word is workerIdx
// shifted into its top 32 bits, the low word is i itself.
func hexCounter(workerIdx, i uint64) string {
	high := workerIdx << 32
	return fmt.Sprintf("%016x%016x", high, i)
}

// signedOpForMatch returns a copy of template with its did_prefix service
// endpoint patched to the winning counter and its signature set, without
// mutating template's own maps/slices (which are shared across every match
// a worker produces).
func signedOpForMatch(template plcop.SignedCreateOp, counter, sig string) plcop.SignedCreateOp {
	services := make(map[string]plcop.Service, len(template.Services))
	for k, v := range template.Services {
		services[k] = v
	}
	if svc, ok := services[plcop.ServicePrefixKey]; ok {
		svc.Endpoint = counter
		services[plcop.ServicePrefixKey] = svc
	}

	out := template
	out.Services = services
	out.Sig = sig
	return out
}
