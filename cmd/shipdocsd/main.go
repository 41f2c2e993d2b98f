package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/shipdocs/internal/app"
	"github.com/joseph-ayodele/shipdocs/internal/async"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/export"
	"github.com/joseph-ayodele/shipdocs/internal/locator"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
	repo "github.com/joseph-ayodele/shipdocs/internal/repository"
	svc "github.com/joseph-ayodele/shipdocs/internal/server"
)

const reportName = "validation_report.xlsx"

func main() {
	if err := common.LoadDotEnv(""); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, true)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	runs := repo.NewRunRepository(db, logger)
	if err := runs.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(ctx, cfg, runs, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	reports := export.NewService(logger)
	queue := async.NewQueue(a.Processor, a.Locator, logger,
		async.WithWorkers(cfg.Inbox.Workers),
		async.WithQueueSize(512),
		async.WithProcessTimeout(3*time.Minute),
		async.WithResultFunc(func(job async.Job, out *pipeline.Outcome, err error) {
			if err != nil || !cfg.Inbox.WriteReport || strings.HasPrefix(job.Pair.Dir, "gs://") {
				return
			}
			b, err := reports.ValidationReportXLSX(out)
			if err == nil {
				err = os.WriteFile(filepath.Join(job.Pair.Dir, reportName), b, 0o644)
			}
			if err != nil {
				logger.Error("inbox.report.failed", "dir", job.Pair.Dir, "error", err)
			}
		}),
	)

	if cfg.Inbox.Dir != "" && !strings.HasPrefix(cfg.Inbox.Dir, "gs://") {
		if err := watchInbox(ctx, cfg, a.Locator, queue, logger); err != nil {
			logger.Error("failed to start inbox watcher", "dir", cfg.Inbox.Dir, "error", err)
			os.Exit(1)
		}
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.UnaryRequestLogger(logger)))
	svc.RegisterPaperworkServer(grpcServer, svc.NewPaperworkService(a.Processor, runs, a.Locator, queue, reports, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("shipdocsd listening", "addr", addr, "inbox", cfg.Inbox.Dir, "llm", cfg.LLMEnabled())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
}

// watchInbox turns settled folder events into queued pairs.
func watchInbox(ctx context.Context, cfg *common.Config, loc *locator.Locator, queue *async.Queue, logger *slog.Logger) error {
	events, errs, err := locator.Watch(ctx, locator.WatchConfig{
		Roots:       []string{cfg.Inbox.Dir},
		InitialScan: true,
		Debounce:    cfg.Inbox.Debounce,
	}, logger)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox.watch.error", "error", err)
			case dir, ok := <-events:
				if !ok {
					return
				}
				loc.Invalidate(dir)
				entries, err := loc.List(ctx, dir)
				if err != nil {
					logger.Error("inbox.scan.failed", "dir", dir, "error", err)
					continue
				}
				for _, p := range locator.Pairs(entries) {
					if p.Dir != dir {
						continue
					}
					if err := queue.Enqueue(ctx, async.Job{Pair: p}); err != nil {
						logger.Warn("inbox.enqueue.failed", "dir", dir, "error", err)
					}
				}
			}
		}
	}()
	return nil
}
