// cmd/assistant-server/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"care-assistant/internal/common/camunda"
	"care-assistant/internal/common/config"
	"care-assistant/internal/common/database"
	"care-assistant/internal/common/llm"
	"care-assistant/internal/common/logger"
	"care-assistant/internal/common/observability"

	aq "care-assistant/internal/workers/ai-conversation/answer-question"
	ch "care-assistant/internal/workers/ai-conversation/conversation-history"
	ls "care-assistant/internal/workers/ai-conversation/llm-synthesis"
	rc "care-assistant/internal/workers/ai-conversation/resolve-clarification"
	rq "care-assistant/internal/workers/ai-conversation/route-query"
	sq "care-assistant/internal/workers/ai-conversation/select-query"
	qc "care-assistant/internal/workers/data-access/query-catalog"
	qw "care-assistant/internal/workers/data-access/query-warehouse"
	skb "care-assistant/internal/workers/data-access/search-knowledge-base"
	ee "care-assistant/internal/workers/extraction/extract-entities"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assistant server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Warehouse (PostgreSQL) ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Session state (Redis) ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Knowledge base (Elasticsearch only when selected) ---
	var esClient *database.ElasticsearchClient
	if cfg.KnowledgeBase.Backend == "elasticsearch" {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	var kb aq.KnowledgeBase
	backend, err := skb.NewBackend(cfg.KnowledgeBase, esClient)
	if err != nil {
		// knowledge turns still answer, with the no-knowledge message
		zapLog.Warn("knowledge base unavailable", zap.Error(err))
	} else {
		kbCfg := skb.LoadConfig()
		kbCfg.TopK = cfg.KnowledgeBase.TopK
		kb = skb.NewHandler(kbCfg, backend, log)
	}

	// --- Language model ---
	client, err := llm.New(cfg.LLM)
	if err != nil {
		zapLog.Fatal("llm client init failed", zap.Error(err))
	}

	// --- Catalog and prompts ---
	catalog, err := qc.Load(&qc.Config{Path: cfg.Pipeline.CatalogPath})
	if err != nil {
		zapLog.Fatal("query catalog invalid", zap.Error(err))
	}
	zapLog.Info("Query catalog loaded",
		zap.String("version", catalog.Version()),
		zap.Int("queries", catalog.Len()),
	)

	prompts, err := ls.LoadPrompts(cfg.Pipeline.PromptsPath)
	if err != nil {
		zapLog.Fatal("synthesis prompts invalid", zap.Error(err))
	}

	handler := buildPipeline(cfg, pg, rdb, catalog, prompts, kb, client, obs, log)

	// --- Optional Zeebe worker ---
	var jobWorker *camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		jobWorker = camunda.NewWorker(zeebe.GetClient(), cfg.Camunda.TaskType, cfg.Camunda.MaxJobsActive,
			config.GetDuration(cfg.Camunda.Timeout), handler, log)
	}

	// --- HTTP ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := pg.Ping(rctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable")
			return
		}
		if err := rdb.Ping(rctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		if zeebe != nil {
			if err := zeebe.HealthCheck(rctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "zeebe unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/chat/stream", handler.ChatStream)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if jobWorker != nil {
		jobWorker.Stop(shutdownCtx)
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Assistant server stopped")
}

// buildPipeline wires the turn stages from configuration.
func buildPipeline(
	cfg *config.Config,
	pg *database.PostgresClient,
	rdb *database.RedisClient,
	catalog *qc.Catalog,
	prompts *ls.Prompts,
	kb aq.KnowledgeBase,
	client llm.Client,
	obs *observability.Observability,
	log logger.Logger,
) *aq.Handler {
	p := cfg.Pipeline
	ttl := p.SessionTTLDuration()

	extCfg := ee.LoadConfig()
	extCfg.KnownAgencies = p.KnownAgencies
	extractor := ee.NewHandler(extCfg, client, log)

	routeCfg := rq.LoadConfig()
	routeCfg.ConfidenceFloor = p.RouterConfidenceFloor

	selectCfg := sq.LoadConfig()
	selectCfg.ClarificationThreshold = p.SelectorClarificationThreshold
	selectCfg.DefaultQuery = p.DefaultQuery
	var feedback *sq.FeedbackLog
	if p.FeedbackEnabled {
		feedback = sq.NewFeedbackLog(pg.DB)
	}

	clarifyCfg := rc.LoadConfig()
	clarifyCfg.MaxAttempts = p.ClarificationMaxAttempts
	clarifyCfg.TTL = ttl
	clarifyCfg.DefaultQuery = p.DefaultQuery

	warehouseCfg := qw.LoadConfig()
	warehouseCfg.RowCap = p.ResultRowCap
	warehouseCfg.Timeout = config.GetDuration(cfg.Database.Postgres.QueryTimeout)

	historyCfg := ch.LoadConfig()
	historyCfg.MaxHistory = p.MaxHistory
	historyCfg.TTL = ttl

	synthCfg := ls.LoadConfig()
	synthCfg.PromptsPath = p.PromptsPath

	answerCfg := aq.LoadConfig()
	answerCfg.ChunkWords = p.StreamChunkWords
	answerCfg.Timeout = config.GetDuration(cfg.Server.RequestTimeout)

	return aq.NewHandler(answerCfg, aq.Deps{
		Router:        rq.NewHandler(routeCfg, client, log),
		Selector:      sq.NewHandler(selectCfg, catalog, extractor, feedback, client, log),
		Clarifier:     rc.NewHandler(clarifyCfg, rc.NewStore(rdb, ttl), catalog, extractor, client, log),
		Warehouse:     qw.NewHandler(warehouseCfg, catalog, pg.DB, log),
		KnowledgeBase: kb,
		Synthesizer:   ls.NewHandler(synthCfg, prompts, client, log),
		History:       ch.NewHandler(historyCfg, ch.NewStore(rdb, ttl), log),
		Observability: obs,
	}, log)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
