package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/config"
	"github.com/voicedraft/voicedraft/internal/ai"
	"github.com/voicedraft/voicedraft/internal/database"
	"github.com/voicedraft/voicedraft/internal/notify"
	"github.com/voicedraft/voicedraft/internal/pipeline"
	"github.com/voicedraft/voicedraft/internal/queue"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.CreateTables(ctx); err != nil {
		logger.Fatal("failed to create tables", zap.Error(err))
	}

	voiceRepo := database.NewVoiceRepository(db)
	pillarRepo := database.NewPillarRepository(db)
	topicRepo := database.NewTopicRepository(db)
	draftRepo := database.NewDraftRepository(db)
	jobRepo := database.NewJobRepository(db)
	usageRepo := database.NewUsageRepository(db)

	client, err := ai.NewClient(cfg.OpenAIKey, logger)
	if err != nil {
		logger.Fatal("failed to create AI client", zap.Error(err))
	}

	thresholds, err := ai.LoadThresholds(cfg.QualityGatePath)
	if err != nil {
		logger.Fatal("failed to load quality gate thresholds", zap.Error(err))
	}

	embeddings := ai.NewEmbeddingService(client, logger)

	var notifier pipeline.Notifier
	if cfg.SlackToken != "" {
		slackNotifier, err := notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel, logger)
		if err != nil {
			logger.Fatal("failed to connect to Slack", zap.Error(err))
		}
		// The approval handler fronts the notifier so reactions on
		// result messages can flip draft statuses.
		notifier = notify.NewApprovalHandler(slackNotifier, draftRepo, logger)
	}

	svc := pipeline.NewService(pipeline.Deps{
		Voice:      voiceRepo,
		Pillars:    pillarRepo,
		Topics:     topicRepo,
		Drafts:     draftRepo,
		Usage:      pipeline.NewPlanLimiter(usageRepo, cfg.Plan, nil),
		Embeddings: embeddings,
		VoiceEng:   ai.NewVoiceEngine(client, logger),
		Discovery:  ai.NewDiscoveryEngine(client, logger),
		Classifier: ai.NewClassifier(client, logger),
		Scorer:     ai.NewTopicScorer(embeddings, logger),
		Generator:  ai.NewGenerator(client, embeddings, logger),
		Gate:       ai.NewQualityGate(thresholds, logger),
		Dedup:      ai.NewDeduplicator(logger),
		Estimator:  ai.NewHeuristicEstimator(),
		Followers:  cfg.FollowerBaseline,
		Notifier:   notifier,
		Logger:     logger,
	})

	queueCfg := queue.DefaultConfig()
	queueCfg.Workers = cfg.QueueWorkers
	queueCfg.RatePerSecond = cfg.QueueRatePerSec
	queueCfg.MaxAttempts = cfg.QueueMaxAttempts

	jobQueue := queue.New(jobRepo, svc.HandleJob, queueCfg, logger)
	svc.SetStrategy(queue.NewEnqueueStrategy(jobQueue, jobRepo, svc.HandleJob, cfg.InlineBudget, logger))

	go func() {
		if err := jobQueue.Start(ctx); err != nil {
			logger.Error("job queue stopped", zap.Error(err))
		}
	}()

	logger.Info("voicedraft pipeline ready",
		zap.Int("workers", queueCfg.Workers),
		zap.Bool("slack", notifier != nil))

	<-ctx.Done()
	logger.Info("shutting down")
}
