package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/steelforge/wlm/internal/config"
	"github.com/steelforge/wlm/internal/eventbus"
	"github.com/steelforge/wlm/internal/logging"
	"github.com/steelforge/wlm/internal/pool"
	"github.com/steelforge/wlm/internal/procmetrics"
	"github.com/steelforge/wlm/internal/wlm"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// processLocatorAdapter bridges pool.ProcessLocator's concrete return
// type to the wlm.ProcessLocator interface — Go's interface
// satisfaction is exact on method signatures, so *pool.ProcessHandle
// cannot stand in for wlm.ProcessHandle without this.
type processLocatorAdapter struct {
	inner *pool.ProcessLocator
}

func (a *processLocatorAdapter) Lookup(pid int) (wlm.ProcessHandle, bool) {
	handle, ok := a.inner.Lookup(pid)
	if !ok {
		return nil, false
	}
	return handle, true
}

func runDaemon(cfgPath string, flags *pflag.FlagSet) error {
	cfg, err := loadConfig(cfgPath, flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Logger.Level, cfg.Logger.Format)
	defer log.Sync()
	reporter := logging.NewReporter(log)

	workerPool := pool.NewWorkerPool(cfg.Pool.MinWorkers, cfg.Pool.MaxWorkers, cfg.Pool.BinaryPath)
	workerPool.CrashHandler = func(workerID string) {
		log.Warn("worker crashed, restart handled by pool", zap.String("worker_id", workerID))
	}

	collector := procmetrics.New(workerPool)
	locator := &processLocatorAdapter{inner: pool.NewProcessLocator()}
	bus := eventbus.New(256)
	reg := prometheus.NewRegistry()
	promo := wlm.NewPrometheusReporter(reg)

	loopCfg := wlm.ControlLoopConfig{
		TotalWorkerMemoryLimitMB: int64(cfg.WLM.TotalWorkerMemoryLimitMB),
		WorkerMemoryLimitMB:      int64(cfg.WLM.WorkerMemoryLimitMB),
		PollInterval:             cfg.WLM.WorkerMetricsPollInterval,
		ShrinkWorkerPool:         cfg.WLM.ShrinkWorkerPool,
		Verbose:                  cfg.WLM.WorkerVerbose,
	}
	loop := wlm.NewControlLoop(loopCfg, collector, workerPool, locator, reporter, bus, promo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go consumeEvents(ctx, bus, log)

	srv := newStatusServer(cfg.Server.Port, workerPool, bus, reg)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	group.Go(func() error {
		log.Info("wlmd listening", zap.Int("port", cfg.Server.Port))
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		workerPool.Shutdown()
		bus.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func consumeEvents(ctx context.Context, bus *eventbus.Bus, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-bus.Events():
			if !ok {
				return
			}
			log.Info("worker evicted",
				zap.String("worker_id", evt.WorkerID),
				zap.String("worker_key_hash", evt.WorkerKeyHash),
				zap.String("mnemonic", evt.Mnemonic),
			)
		}
	}
}
