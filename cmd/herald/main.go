package main

import (
	"context"
	"time"

	"herald/internal/curator"
	"herald/internal/feeds"
	"herald/internal/generator"
	"herald/internal/handlers"
	"herald/internal/metrics"
	"herald/internal/pipeline"
	"herald/internal/poster"
	"herald/internal/safety"
	"herald/internal/store"
	"herald/pkg/clients/linkedin"
	"herald/pkg/clients/newsapi"
	"herald/pkg/clients/twitter"
	"herald/pkg/config"
	"herald/pkg/database"
	"herald/pkg/kafka"
	"herald/pkg/llm"
	"herald/pkg/logging"
	"herald/pkg/monitoring"
	"herald/pkg/server"
	"herald/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Herald (Social Media Agent)")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = config.GetEnv("DATABASE_URL", "")
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.Bootstrap(db, logger); err != nil {
		logger.WithError(err).Fatal("Schema bootstrap failed")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": config.GetEnv("DATABASE_URL", ""),
		"LLM_API_KEY":  config.GetEnv("LLM_API_KEY", config.GetEnv("DEEPSEEK_API_KEY", "")),
	}))

	// DB pool gauge
	dbConnections := metricsCollector.NewGauge("db_connections", "Database pool connections", []string{"state"})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			dbConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
			dbConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
			dbConnections.WithLabelValues("idle").Set(float64(stats.Idle))
		}
	}()

	// LLM provider
	llmConfig := llm.LoadConfig()
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure LLM provider")
	}
	logger.WithFields(logging.Fields{
		"provider": llmConfig.Provider,
		"model":    llmConfig.Model,
	}).Info("LLM provider configured")

	llmRequests, llmDuration := metricsCollector.CreateLLMMetrics()
	curatorProvider := llm.Instrument(provider, "curate", llmRequests, llmDuration)
	safetyProvider := llm.Instrument(provider, "safety", llmRequests, llmDuration)
	generatorProvider := llm.Instrument(provider, "generate", llmRequests, llmDuration)

	// Kafka events (optional)
	var events kafka.Publisher
	if brokers := config.GetEnvList("KAFKA_BROKERS", nil); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers, logger)
		if err != nil {
			logger.WithError(err).Warn("Kafka unavailable, pipeline events disabled")
		} else {
			defer producer.Close()
			events = producer
			healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
		}
	}

	// Content sources
	registry, err := feeds.LoadRegistry()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load feed registry")
	}
	var fetcherOpts []feeds.FetcherOption
	if apiKey := config.GetEnv("NEWS_API_KEY", ""); apiKey != "" {
		fetcherOpts = append(fetcherOpts, feeds.WithNewsAPI(newsapi.NewClient(apiKey)))
	} else {
		logger.Warn("NEWS_API_KEY not set, NewsAPI source disabled")
	}
	fetcher := feeds.NewFetcher(registry, logger, fetcherOpts...)

	// Platform clients
	st := store.New(db, logger)
	publishers := make(map[string]poster.Publisher)
	readers := make(map[string]metrics.Reader)

	if username := config.GetEnv("TWITTER_USERNAME", ""); username != "" {
		twitterClient := twitter.NewClient(twitter.Credentials{
			Username: username,
			Email:    config.GetEnv("TWITTER_EMAIL", ""),
			Password: config.RequireEnv("TWITTER_PASSWORD"),
		})
		publishers["twitter"] = &poster.TwitterPublisher{Client: twitterClient}
		readers["twitter"] = &metrics.TwitterReader{Client: twitterClient}
	} else {
		logger.Warn("TWITTER_USERNAME not set, twitter posting disabled")
	}

	if jsessionid := config.GetEnv("LINKEDIN_JSESSIONID", ""); jsessionid != "" {
		linkedinClient := linkedin.NewClient(linkedin.Session{
			JSESSIONID: jsessionid,
			LiAt:       config.RequireEnv("LINKEDIN_LI_AT"),
		})
		publishers["linkedin"] = &poster.LinkedInPublisher{Client: linkedinClient}
		readers["linkedin"] = &metrics.LinkedInReader{Client: linkedinClient}
	} else {
		logger.Warn("LINKEDIN_JSESSIONID not set, linkedin posting disabled")
	}

	// Pipeline
	platformPosts, platformDuration := metricsCollector.CreatePlatformMetrics()
	pipe := pipeline.New(pipeline.Deps{
		Store:     st,
		Curator:   curator.New(st, fetcher, curatorProvider, logger),
		Checker:   safety.New(st, safetyProvider, logger),
		Generator: generator.New(generatorProvider, logger),
		Poster:    poster.New(st, publishers, logger).WithMetrics(platformPosts, platformDuration),
		Events:    events,
		Metrics:   metricsCollector,
		Logger:    logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pipe.Start(ctx)

	// Engagement metrics collector
	collector := metrics.NewCollector(st, readers, logger)
	go collector.Run(ctx)

	// Initialize handlers
	handlers.Init(st, pipe, logger)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)

	api := router.Group("/api")
	{
		api.POST("/pipeline/run", handlers.RunPipeline)
		api.GET("/pipeline/runs", handlers.ListPipelineRuns)
		api.GET("/pipeline/runs/:id", handlers.GetPipelineRun)

		api.GET("/posts", handlers.ListPosts)
		api.GET("/posts/:id/performance", handlers.GetPostPerformance)
		api.GET("/analytics/:platform", handlers.GetPlatformAnalytics)

		api.GET("/sources", handlers.ListSources)
		api.GET("/safety/logs", handlers.ListSafetyLogs)
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("herald", "18090")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
