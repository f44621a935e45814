package main

import (
	"net/http"

	"github.com/gartstein/hrflow/internal/hrflow/config"
	"github.com/gartstein/hrflow/internal/hrflow/controller"
	"github.com/gartstein/hrflow/internal/hrflow/db"
	"github.com/gartstein/hrflow/internal/hrflow/docgen"
	"github.com/gartstein/hrflow/internal/hrflow/events"
	"github.com/gartstein/hrflow/internal/hrflow/metrics"
	"github.com/gartstein/hrflow/internal/hrflow/pdfservices"
	"github.com/gartstein/hrflow/internal/hrflow/templates"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type eventProducer interface {
	controller.EventProducer
	Close()
}

// app holds the wired services shared by the commands.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	recorder *metrics.Recorder
	pdf      *pdfservices.Client
	pipeline *controller.Pipeline
	docs     *controller.DocumentService
	repo     *db.Repository
	producer eventProducer
	logger   *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	httpClient := &http.Client{}
	dg := docgen.NewClient(docgen.Config{
		BaseURL:     cfg.DocGen.BaseURL,
		Credentials: cfg.DocGen.Credentials(),
		Timeout:     cfg.RequestTimeout,
	}, httpClient, recorder, logger)
	pdf := pdfservices.NewClient(pdfservices.Config{
		BaseURL:         cfg.PDFServices.BaseURL,
		Credentials:     cfg.PDFServices.Credentials(),
		Timeout:         cfg.RequestTimeout,
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	}, httpClient, recorder, logger)

	builder := templates.NewBuilder(templates.NewCache(cfg.TemplateCacheDir, logger), logger)
	pipeline := controller.NewPipeline(builder, dg, pdf, cfg.CompanyName, recorder, logger)

	repo, err := db.NewRepository(&db.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		return nil, err
	}

	var producer eventProducer
	if len(cfg.Kafka.Brokers) > 0 {
		if err := events.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger); err != nil {
			logger.Warn("Kafka is not reachable, events will be retried by the writer", zap.Error(err))
		}
		producer = events.NewProducer(cfg.Kafka.Brokers, logger, cfg.Kafka.Topic)
	} else {
		producer = events.NewLogProducer(logger)
	}

	docs := controller.NewDocumentService(pipeline, repo, producer, cfg.BulkConcurrency, logger)

	return &app{
		cfg:      cfg,
		registry: registry,
		recorder: recorder,
		pdf:      pdf,
		pipeline: pipeline,
		docs:     docs,
		repo:     repo,
		producer: producer,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	a.producer.Close()
	if err := a.repo.Close(); err != nil {
		a.logger.Error("Failed to close store", zap.Error(err))
	}
}
