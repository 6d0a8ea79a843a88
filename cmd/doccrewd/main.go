package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/api"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/auth"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/knowledge"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/observability/alerting"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/output"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/run"
	"github.com/Streamweaver/CodebaseDocumentationCrew/pkg/logger"
)

// main 是文档生成守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx); err != nil {
		log.Fatalf("doccrewd 运行失败: %v", err)
	}
}

func serve(ctx context.Context) error {
	_ = godotenv.Load()

	configPath := os.Getenv("DOCCREW_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "doccrew.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return err
	}

	var store run.Store
	switch cfg.Storage.RunStore.Driver {
	case "", "memory":
		store = run.NewMemoryStore()
	case "mysql":
		mysqlStore, err := run.NewMySQLStore(cfg.Storage.RunStore.DSN, run.MySQLOptions{
			MaxOpenConns:    cfg.Storage.RunStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.RunStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.RunStore.ConnMaxLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		store = mysqlStore
	default:
		return fmt.Errorf("未知的存储驱动: %s", cfg.Storage.RunStore.Driver)
	}
	defer func() {
		_ = store.Close()
	}()

	var queue run.Queue
	switch cfg.RunQueue.Driver {
	case "", "memory":
		queue = run.NewMemoryQueue(1024)
	case "redis":
		redisQueue, err := run.NewRedisQueue(run.RedisQueueConfig{
			Address:   cfg.RunQueue.Redis.Address,
			Password:  cfg.RunQueue.Redis.Password,
			DB:        cfg.RunQueue.Redis.DB,
			Queue:     cfg.RunQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.RunQueue.Redis.BlockWait) * time.Second,
		})
		if err != nil {
			return err
		}
		queue = redisQueue
	case "rabbitmq":
		rabbitQueue, err := run.NewRabbitMQQueue(run.RabbitMQConfig{
			URL:        cfg.RunQueue.RabbitMQ.URL,
			Queue:      cfg.RunQueue.RabbitMQ.Queue,
			Prefetch:   cfg.RunQueue.RabbitMQ.Prefetch,
			Durable:    cfg.RunQueue.RabbitMQ.Durable,
			AutoDelete: cfg.RunQueue.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		queue = rabbitQueue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.RunQueue.Driver)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.L().Warn("关闭运行队列失败", "error", err)
		}
	}()

	writer, err := output.NewWriter(cfg.Output.Dir)
	if err != nil {
		return err
	}

	executorOpts := []run.ExecutorOption{
		run.WithExecutorLLMTimeout(cfg.LLM.Timeout()),
	}
	if cfg.Knowledge.Source != "" {
		provider, err := knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
		executorOpts = append(executorOpts, run.WithExecutorKnowledge(provider))
	}

	executor, err := run.NewCrewExecutor(cfg.Crew, llmClient, writer, executorOpts...)
	if err != nil {
		return err
	}

	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.Alerting.WebhookURL})
	}
	dispatcher := alerting.NewFanout(notifiers...)

	service := run.NewService(store, queue, cfg.Storage.RunStore.Retries)
	processor := run.NewProcessor(executor, store, queue, queue,
		run.WithWorkerCount(cfg.RunQueue.Worker),
		run.WithProcessorLogger(logger.L()),
		run.WithAlertDispatcher(dispatcher),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("运行处理器异常退出", "error", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, service, auth.NewService(cfg.Server.APIToken, logger.Audit()))

	logger.L().Info("doccrewd 启动",
		"address", cfg.Server.Address,
		"store", cfg.Storage.RunStore.Driver,
		"queue", cfg.RunQueue.Driver,
		"model", llmClient.ModelName(),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
