package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyatt/creatorscout/internal/config"
	"github.com/wyatt/creatorscout/internal/domain"
	"github.com/wyatt/creatorscout/internal/logger"
	"github.com/wyatt/creatorscout/internal/repository"
	"github.com/wyatt/creatorscout/internal/service"
	"github.com/wyatt/creatorscout/internal/storage"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "creatorscout-discover",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	description := flag.String("description", "", "Business description to discover creators for")
	ownerID := flag.String("owner", "cli", "Owner id recorded on the job")
	campaignID := flag.String("campaign", "", "Campaign id to bind the job to")
	topN := flag.Int("top-n", 0, "Number of candidates to collect (0 uses the configured default)")
	platform := flag.String("platform", "", "Restrict to one platform (instagram or tiktok)")
	minFollowers := flag.Int64("min-followers", -1, "Minimum follower count filter (-1 disables)")
	maxFollowers := flag.Int64("max-followers", -1, "Maximum follower count filter (-1 disables)")
	stopAfter := flag.String("stop-after", "", "Stop after this stage completes (query_expansion, vector_search, collection)")
	pollInterval := flag.Duration("poll", 5*time.Second, "Status poll interval")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *description == "" {
		appLogger.Fatal("Flag -description is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)

	progressCache, err := repository.NewProgressCache(&cfg.Redis)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to redis")
	}
	if progressCache != nil {
		defer progressCache.Close()
	}

	qdrantRepo := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	defer qdrantRepo.Close()

	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure qdrant collection")
	}

	// Initialize snapshot archive (optional)
	archive, err := storage.NewArchive(&cfg.Archive)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize snapshot archive")
	}

	// Initialize services
	tracker := service.NewJobProgressTracker(jobRepo, progressCache)
	binder := service.NewCampaignBinder(campaignRepo)
	expansionService := service.NewQueryExpansionService(&cfg.LLM, &cfg.Expansion)
	embeddingService := service.NewEmbeddingService(&cfg.Embedding)
	searchService := service.NewVectorSearchService(embeddingService, qdrantRepo, &cfg.Pipeline)
	collectionService := service.NewBrightDataService(&cfg.Collection)
	collector := service.NewBatchCollector(collectionService, &cfg.Collection)
	fitService := service.NewProfileFitService(&cfg.LLM, &cfg.Scoring)

	pipeline := service.NewPipelineOrchestrator(
		tracker,
		campaignRepo,
		binder,
		expansionService,
		searchService,
		collector,
		fitService,
		archive,
		cfg,
	)

	// Build the submission
	req := service.SubmitRequest{
		OwnerID:             *ownerID,
		CampaignID:          *campaignID,
		BusinessDescription: *description,
		TopN:                *topN,
		Platform:            *platform,
		StopAfterStage:      domain.Stage(*stopAfter),
	}
	if *minFollowers >= 0 {
		req.MinFollowers = minFollowers
	}
	if *maxFollowers >= 0 {
		req.MaxFollowers = maxFollowers
	}

	jobID, err := pipeline.Submit(ctx, req)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to submit pipeline")
	}
	appLogger.WithField("job_id", jobID).Info("Pipeline submitted")

	// A first interrupt requests cooperative cancellation; the loop below
	// keeps polling until the job reaches a terminal status.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, requesting cancellation...")
		if _, err := pipeline.Cancel(ctx, jobID); err != nil {
			appLogger.WithError(err).Error("Failed to request cancellation")
		}
	}()

	job := pollUntilDone(ctx, tracker, jobID, *pollInterval, appLogger)

	appLogger.WithFields(logger.Fields{
		"status":             string(job.Status),
		"queries_generated":  job.QueriesGenerated,
		"search_hits":        job.SearchHits,
		"deduped_hits":       job.DedupedHits,
		"profiles_collected": job.ProfilesCollected,
		"profiles_analyzed":  job.ProfilesAnalyzed,
		"batches_completed":  job.BatchesCompleted,
		"batches_failed":     job.BatchesFailed,
	}).Info("Pipeline finished")

	if job.Status == domain.JobStatusError {
		appLogger.WithField("error", job.ErrorMessage).Error("Pipeline ended in error")
		os.Exit(1)
	}
}

// pollUntilDone polls the job until it reaches a terminal status, logging
// stage transitions along the way.
func pollUntilDone(ctx context.Context, tracker *service.JobProgressTracker, jobID string, interval time.Duration, log *logger.Logger) *domain.PipelineJob {
	lastStage := domain.Stage("")
	for {
		job, err := tracker.GetJob(ctx, jobID)
		if err != nil {
			log.WithError(err).Error("Status poll failed")
			time.Sleep(interval)
			continue
		}

		if job.CurrentStage != "" && job.CurrentStage != lastStage {
			lastStage = job.CurrentStage
			log.WithFields(logger.Fields{
				"stage":    string(job.CurrentStage),
				"progress": job.Progress,
			}).Info("Stage changed")
		}

		if job.Status.IsTerminal() {
			return job
		}

		time.Sleep(interval)
	}
}
