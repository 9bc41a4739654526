// Package supervisor runs one independent lifecycle per pair.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner is one pair's lifecycle.
type Runner interface {
	Run(ctx context.Context, req lifecycle.Request) (lifecycle.Outcome, error)
}

// Factory builds the runner for a pair. It is called once per pair.
type Factory func(pair string) (Runner, error)

type Config struct {
	// SignalInterval is the wait before asking for a new signal after a
	// cycle ended without a position.
	SignalInterval time.Duration
	// Continuous starts a new cycle after a position closes instead of
	// stopping the pair.
	Continuous bool
}

// Result is the last outcome of a pair and the error that stopped it, if any.
type Result struct {
	Pair    string
	Cycles  int
	Outcome lifecycle.Outcome
	Err     error
}

type Supervisor struct {
	cfg     Config
	factory Factory
	log     *zap.Logger
}

func New(cfg Config, factory Factory, log *zap.Logger) *Supervisor {
	if cfg.SignalInterval <= 0 {
		cfg.SignalInterval = lifecycle.DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{cfg: cfg, factory: factory, log: log}
}

// Run drives every request until its pair stops. A failing pair never
// cancels the others; all pair errors are returned together.
func (s *Supervisor) Run(ctx context.Context, reqs []lifecycle.Request) ([]Result, error) {
	results := make([]Result, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if seen[r.Pair] {
			return nil, fmt.Errorf("pair %s requested twice", r.Pair)
		}
		seen[r.Pair] = true
	}

	var (
		g   errgroup.Group
		mu  sync.Mutex
		err error
	)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			pctx, cancel := context.WithCancel(ctx)
			defer cancel()

			res := s.runPair(pctx, req)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				err = multierr.Append(err, fmt.Errorf("%s: %w", req.Pair, res.Err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, err
}

func (s *Supervisor) runPair(ctx context.Context, req lifecycle.Request) Result {
	log := s.log.With(zap.String("pair", req.Pair))
	res := Result{Pair: req.Pair}

	runner, err := s.factory(req.Pair)
	if err != nil {
		res.Err = err
		log.Error("lifecycle setup failed", zap.Error(err))
		return res
	}

	for {
		out, err := runner.Run(ctx, req)
		res.Cycles++
		res.Outcome = out
		// only the first cycle may resume a stored position
		req.Resume = false

		switch {
		case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
			log.Info("pair stopped", zap.String("state", string(out.State)))
			return res
		case err != nil:
			res.Err = err
			log.Error("pair stopped on error", zap.String("state", string(out.State)), zap.Error(err))
			return res
		case out.State == lifecycle.StateClosed:
			log.Info("cycle closed",
				zap.String("reason", string(out.ExitReason)),
				zap.Float64("pnl", out.PnL),
				zap.Int("cycle", res.Cycles))
			if !s.cfg.Continuous {
				return res
			}
		}

		if err := wait(ctx, s.cfg.SignalInterval); err != nil {
			return res
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
