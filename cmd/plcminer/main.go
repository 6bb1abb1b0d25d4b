// Command plcminer searches for a did:plc identifier matching a regular
// expression by repeatedly re-signing a genesis PLC operation with the
// signature-exploitation engine in internal/fastsig, and submits (or, under
// --dry-run, logs) every operation whose resulting identifier matches, until
// it is interrupted.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanitydid/plcminer/internal/curve"
	"github.com/vanitydid/plcminer/internal/didkey"
	"github.com/vanitydid/plcminer/internal/fastsig"
	"github.com/vanitydid/plcminer/internal/miner"
	"github.com/vanitydid/plcminer/internal/plcop"
	"github.com/vanitydid/plcminer/internal/submit"
)

type options struct {
	seed          uint64
	workerThreads int
	dryRun        bool
	plcDirectory  string
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "plcminer <rotation-key> <regex>",
		Short: "Mine a vanity did:plc identifier matching a regex",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], args[1])
		},
	}

	flags := root.Flags()
	flags.Uint64VarP(&opts.seed, "seed", "s", 0, "seed value for the DID (0 picks a random seed)")
	flags.IntVarP(&opts.workerThreads, "worker-threads", "w", 0, "number of worker goroutines (0 = number of CPUs)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "don't submit winning DIDs to the directory")
	flags.StringVar(&opts.plcDirectory, "plc-directory", "https://plc.directory", "URL of the PLC directory to submit to")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, rotationKey, pattern string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("plcminer: building logger: %w", err)
	}
	defer logger.Sync()

	if err := didkey.ValidateInsecureRotationKey(); err != nil {
		return err
	}

	seed := opts.seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("plcminer: invalid regex %q: %w", pattern, err)
	}

	logger.Info("starting search",
		zap.Uint64("seed", seed),
		zap.String("regex", pattern),
		zap.Bool("dry_run", opts.dryRun),
		zap.String("plc_directory", opts.plcDirectory),
	)

	logger.Info("generating ECDSA constants...")
	tableStart := time.Now()
	c := curve.Secp256k1()
	table := fastsig.GenerateTable(c)
	logger.Info("generated ECDSA constants", zap.Duration("took", time.Since(tableStart)))

	op := plcop.NewGenesisOp(rotationKey, didkey.InsecureRotationKey, seed)
	buffers, err := plcop.BuildBuffers(op)
	if err != nil {
		return fmt.Errorf("plcminer: %w", err)
	}

	workers := opts.workerThreads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool := miner.NewPool(miner.Config{
		Buffers: buffers,
		Table:   table,
		Curve:   c,
		Regex:   re,
		Workers: workers,
		Logger:  logger,
	})

	submitter := submit.NewClient(opts.plcDirectory, opts.dryRun, logger)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	poolErrCh := make(chan error, 1)
	go func() { poolErrCh <- pool.Run(runCtx) }()

	submitErrCh := make(chan error, 1)
	go func() { submitErrCh <- submitter.Run(context.Background(), pool.Matches()) }()

	go reportThroughput(runCtx, logger, pool, tableStart)

	if err := <-poolErrCh; err != nil {
		logger.Error("worker pool exited with error", zap.Error(err))
	}
	<-submitErrCh

	logger.Info("goodbye")
	return nil
}

// reportThroughput logs the running duration and average signatures-per-
// second every 10 seconds, matching original_source/main.rs's status line.
func reportThroughput(ctx context.Context, logger *zap.Logger, pool *miner.Pool, start time.Time) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			logger.Info("running",
				zap.Duration("elapsed", elapsed.Round(time.Second)),
				zap.Float64("avg_per_sec", pool.Meter().RateMean()),
			)
		}
	}
}
