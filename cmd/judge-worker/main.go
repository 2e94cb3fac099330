package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autojudge/internal/common/cache"
	"autojudge/internal/common/db"
	"autojudge/internal/judge/controller"
	"autojudge/internal/judge/ingest"
	"autojudge/internal/judge/leaderboard"
	"autojudge/internal/judge/repository"
	"autojudge/internal/judge/scheduler"
	"autojudge/internal/judge/score"
	"autojudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_worker.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	contestRepo := repository.NewContestRepository(mysqlDB)
	problemRepo := repository.NewProblemRepository(mysqlDB)
	testCaseRepo := repository.NewTestCaseRepository(mysqlDB)
	submissionRepo := repository.NewSubmissionRepository(mysqlDB)
	verdictRepo := repository.NewSubmissionTestCaseRepository(mysqlDB)
	finalScoreRepo := repository.NewFinalScoreRepository(mysqlDB)

	if err := os.MkdirAll(appCfg.Worker.LeaderboardDir, 0755); err != nil {
		logger.Error(context.Background(), "create leaderboard dir failed", zap.Error(err))
		return
	}
	mirror := leaderboard.NewMirror(redisCache)
	board := leaderboard.NewStore(appCfg.Worker.LeaderboardDir,
		&aggregateSource{repo: finalScoreRepo}, mirror)

	var linter score.Linter
	if appCfg.Linter.Enabled {
		linter = score.NewCommandLinter(appCfg.Linter.Commands, appCfg.Linter.DensityPenalty)
	}
	engine := score.NewEngine(contestRepo, problemRepo, submissionRepo, verdictRepo,
		finalScoreRepo, board, linter, appCfg.Worker.FilesDir)
	ingestor := ingest.NewIngestor(submissionRepo, testCaseRepo, verdictRepo)

	runner := scheduler.NewDockerRunner(appCfg.Worker.DockerImage, appCfg.Worker.ContentDir)
	if appCfg.Worker.BuildImage {
		if err := runner.BuildImage(context.Background()); err != nil {
			logger.Error(context.Background(), "build sandbox image failed", zap.Error(err))
			return
		}
	}

	sched := scheduler.New(scheduler.Config{
		MonitorDir:      appCfg.Worker.MonitorDir,
		RefillThreshold: appCfg.Worker.RefillThreshold,
		PollInterval:    appCfg.Worker.PollInterval,
	}, scheduler.NewFileJobStore(appCfg.Worker.MonitorDir), runner, ingestor, engine)

	httpServer := buildHTTPServer(appCfg.Server, submissionRepo, verdictRepo, board, mirror)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan error, 1)
	go func() {
		schedulerDone <- sched.Run(shutdownCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge worker http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}

	// The scheduler honors cancellation between jobs; wait for the
	// in-flight job to finish.
	select {
	case <-schedulerDone:
	case <-ctx.Done():
		logger.Warn(context.Background(), "scheduler did not stop in time")
	}
}

// aggregateSource feeds leaderboard rebuilds from the aggregate score table.
type aggregateSource struct {
	repo repository.FinalScoreRepository
}

func (s *aggregateSource) ContestScores(ctx context.Context, contestID int64) ([]leaderboard.Entry, error) {
	scores, err := s.repo.ListByContest(ctx, nil, contestID)
	if err != nil {
		return nil, err
	}
	entries := make([]leaderboard.Entry, 0, len(scores))
	for _, aggregate := range scores {
		entries = append(entries, leaderboard.Entry{Email: aggregate.PersonEmail, Score: aggregate.Score})
	}
	return entries, nil
}

func buildHTTPServer(
	cfg ServerConfig,
	submissions repository.SubmissionRepository,
	verdicts repository.SubmissionTestCaseRepository,
	board *leaderboard.Store,
	mirror *leaderboard.Mirror,
) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	judgeController := controller.NewJudgeController(submissions, verdicts, board, mirror)
	judgeController.RegisterRoutes(router)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
