// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lending-workers/internal/common/aws"
	"lending-workers/internal/common/camunda"
	"lending-workers/internal/common/config"
	"lending-workers/internal/common/database"
	commonhttp "lending-workers/internal/common/http"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/observability"
	"lending-workers/internal/jobstatus"
	"lending-workers/internal/store"
	"lending-workers/pkg/registry"

	// Application Workers (3)
	grc "lending-workers/internal/workers/application/generate-reference-code"
	rrc "lending-workers/internal/workers/application/resolve-reference-code"
	sas "lending-workers/internal/workers/application/save-application-state"

	// Document Workers (4)
	gd "lending-workers/internal/workers/document/generate-document"
	stl "lending-workers/internal/workers/document/select-template"
	vad "lending-workers/internal/workers/document/validate-application-data"
	vu "lending-workers/internal/workers/document/validate-upload"

	// Communication Workers (2)
	cw "lending-workers/internal/workers/communication/call-webhook"
	sn "lending-workers/internal/workers/communication/send-notification"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Camunda Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Shared Services ---
	auditor := store.NewElasticAuditor(esClient.Client, cfg.Database.Elasticsearch.AuditIndex)
	appStore := store.New(pg.DB, auditor, log)

	statusCache := jobstatus.NewCache(redis.Client, time.Duration(cfg.Generation.StatusTTLMinutes)*time.Minute)

	templates, err := registry.LoadRegistry(cfg.Template.RegistryPath)
	if err != nil {
		zapLog.Fatal("template registry load failed", zap.Error(err), zap.String("path", cfg.Template.RegistryPath))
	}
	zapLog.Info("Template registry loaded", zap.Int("templates", len(templates.Templates)))

	// Typed nils must not leak into the notifier interfaces, so the AWS
	// clients are only assigned when their channel is enabled.
	var sesClient sn.SESService
	var snsClient sn.SNSService
	if cfg.Notifications.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		sesClient = client
	}
	if cfg.Notifications.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		snsClient = client
	}

	httpClient := commonhttp.NewClient(time.Duration(cfg.Notifications.WebhookTimeoutSec) * time.Second)

	zapLog.Info("All external service clients initialized")

	// --- START: Register ALL 9 Workers ---

	// Communication handlers are built first: the generation pipeline
	// delivers its outcomes through them.
	notificationCfg := &sn.Config{
		Timeout:     time.Duration(cfg.Workers[sn.TaskType].Timeout) * time.Millisecond,
		EmailFrom:   cfg.Notifications.Email.FromEmail,
		SMSSenderID: cfg.Notifications.SMS.SenderID,
	}
	if cfg.Notifications.Messaging.Enabled {
		notificationCfg.MessagingEndpoint = cfg.Notifications.Messaging.GatewayURL
	}
	notifiers := sn.NewDispatcher(notificationCfg, sesClient, snsClient, httpClient, log)
	notificationHandler := sn.NewHandler(notificationCfg, notifiers, log)

	webhookHandler := cw.NewHandler(
		&cw.Config{
			Timeout: time.Duration(cfg.Workers[cw.TaskType].Timeout) * time.Millisecond,
		},
		httpClient, log,
	)

	// --- 1. Application Workers (3) ---
	if cfg.Workers[sas.TaskType].Enabled {
		handler := sas.NewHandler(
			&sas.Config{
				Timeout:        time.Duration(cfg.Workers[sas.TaskType].Timeout) * time.Millisecond,
				SessionTTL:     24 * time.Hour,
				GenerationMsg:  "document-generation-requested",
				PublishOnReady: true,
			},
			appStore, camundaClient, log,
		)
		startWorker(zeebeClient, sas.TaskType, cfg.Workers[sas.TaskType], handler, obs, zapLog)
	}

	if cfg.Workers[grc.TaskType].Enabled {
		handler := grc.NewHandler(
			&grc.Config{
				Timeout:     time.Duration(cfg.Workers[grc.TaskType].Timeout) * time.Millisecond,
				MaxAttempts: 10,
			},
			appStore, log,
		)
		startWorker(zeebeClient, grc.TaskType, cfg.Workers[grc.TaskType], handler, obs, zapLog)
	}

	if cfg.Workers[rrc.TaskType].Enabled {
		handler := rrc.NewHandler(
			&rrc.Config{
				Timeout: time.Duration(cfg.Workers[rrc.TaskType].Timeout) * time.Millisecond,
			},
			appStore, log,
		)
		startWorker(zeebeClient, rrc.TaskType, cfg.Workers[rrc.TaskType], handler, obs, zapLog)
	}

	// --- 2. Document Workers (4) ---
	if cfg.Workers[stl.TaskType].Enabled {
		handler := stl.NewHandler(
			&stl.Config{
				Timeout: time.Duration(cfg.Workers[stl.TaskType].Timeout) * time.Millisecond,
			},
			appStore, templates, log,
		)
		startWorker(zeebeClient, stl.TaskType, cfg.Workers[stl.TaskType], handler, obs, zapLog)
	}

	if cfg.Workers[vad.TaskType].Enabled {
		handler := vad.NewHandler(
			&vad.Config{
				Timeout: time.Duration(cfg.Workers[vad.TaskType].Timeout) * time.Millisecond,
			},
			appStore, log,
		)
		startWorker(zeebeClient, vad.TaskType, cfg.Workers[vad.TaskType], handler, obs, zapLog)
	}

	if cfg.Workers[vu.TaskType].Enabled {
		handler := vu.NewHandler(
			&vu.Config{
				Timeout:     time.Duration(cfg.Workers[vu.TaskType].Timeout) * time.Millisecond,
				MaxUploadKB: int64(cfg.Documents.MaxUploadKB),
			},
			log,
		)
		startWorker(zeebeClient, vu.TaskType, cfg.Workers[vu.TaskType], handler, obs, zapLog)
	}

	if cfg.Workers[gd.TaskType].Enabled {
		renderer := gd.NewFileRenderer(cfg.Generation.OutputDir)
		service := gd.NewService(appStore, statusCache, templates, renderer, notificationHandler, webhookHandler, log)
		handler := gd.NewHandler(
			&gd.Config{
				Timeout:        time.Duration(cfg.Workers[gd.TaskType].Timeout) * time.Millisecond,
				AttemptTimeout: time.Duration(cfg.Generation.AttemptTimeoutSec) * time.Second,
				MaxAttempts:    cfg.Generation.MaxAttempts,
				BackoffBase:    time.Duration(cfg.Generation.BackoffBaseMinutes) * time.Minute,
				OutputDir:      cfg.Generation.OutputDir,
			},
			service, log,
		)
		startWorker(zeebeClient, gd.TaskType, cfg.Workers[gd.TaskType], handler, obs, zapLog)
	}

	// --- 3. Communication Workers (2) ---
	if cfg.Workers[sn.TaskType].Enabled {
		startWorker(zeebeClient, sn.TaskType, cfg.Workers[sn.TaskType], notificationHandler, obs, zapLog)
	}

	if cfg.Workers[cw.TaskType].Enabled {
		startWorker(zeebeClient, cw.TaskType, cfg.Workers[cw.TaskType], webhookHandler, obs, zapLog)
	}

	zapLog.Info("All 9 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range activeWorkers {
		w.Stop(shutdownCtx)
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// activeWorkers tracks open subscriptions so shutdown can drain them
// before the gRPC connection closes.
var activeWorkers []*camunda.CamundaWorker

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler camunda.JobHandler, obs *observability.Observability, log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	activeWorkers = append(activeWorkers, camunda.NewWorker(client, taskType, wcfg, handler, obs, log))
}
