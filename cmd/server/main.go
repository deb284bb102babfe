package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/vbastos/chat-infinite/internal/agents"
	"github.com/vbastos/chat-infinite/internal/audit"
	"github.com/vbastos/chat-infinite/internal/config"
	"github.com/vbastos/chat-infinite/internal/conversation"
	"github.com/vbastos/chat-infinite/internal/handlers"
	"github.com/vbastos/chat-infinite/internal/llm"
	"github.com/vbastos/chat-infinite/internal/orchestrator"
	"github.com/vbastos/chat-infinite/internal/rag"
	"github.com/vbastos/chat-infinite/internal/router"
	"github.com/vbastos/chat-infinite/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	logger.Info("starting chat-infinite",
		"service", cfg.ServiceName,
		"nats_url", cfg.NatsURL,
		"redis_url", cfg.RedisURL,
		"ollama_model", cfg.OllamaModel,
	)

	ctx := context.Background()

	// Redis backs both the conversation store and the audit log.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	kv, err := conversation.NewRedisKV(ctx, redisClient)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	store := conversation.NewManager(kv, cfg.Retention)
	logger.Info("Redis connected")

	sink := audit.NewRedisSink(redisClient, logger, cfg.AuditLogKey, cfg.AuditLogMax)

	generator, err := llm.NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.ConnectTimeout, cfg.ReadTimeout)
	if err != nil {
		logger.Error("failed to initialize Ollama client", "error", err)
		os.Exit(1)
	}

	embedder, err := embeddings.NewEmbedder(generator.Client())
	if err != nil {
		logger.Error("failed to initialize embedder", "error", err)
		os.Exit(1)
	}
	index, err := rag.NewChromaIndex(cfg.ChromaURL, cfg.ChromaCollection, embedder)
	if err != nil {
		logger.Error("failed to connect to Chroma", "error", err)
		os.Exit(1)
	}
	retriever := rag.NewRetriever(index, cfg.MaxDistance, cfg.TopK, logger)
	logger.Info("retrieval ready", "collection", cfg.ChromaCollection, "max_distance", cfg.MaxDistance)

	knowledgeAgent := agents.NewKnowledge(retriever, generator, sink)
	mathAgent := agents.NewMath(generator, sink)
	rtr := router.New(knowledgeAgent, mathAgent, sink)
	orch := orchestrator.New(store, rtr, sink, logger)
	handler := handlers.New(store, orch, cfg.HistoryLimit)

	natsTransport, err := transport.NewNATSTransport(cfg, handler, logger)
	if err != nil {
		logger.Error("failed to initialize NATS transport", "error", err)
		os.Exit(1)
	}
	defer natsTransport.Close()

	if err := natsTransport.Start(); err != nil {
		logger.Error("failed to start NATS transport", "error", err)
		os.Exit(1)
	}

	logger.Info("chat-infinite is running", "chat_subject", cfg.NatsChatSubject)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("shutting down", "signal", sig.String())
}
