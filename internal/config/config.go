package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// NATS configuration
	NatsURL         string
	NatsChatSubject string
	NatsTimeout     time.Duration

	// Redis configuration
	RedisURL  string
	Retention time.Duration

	// Ollama configuration
	OllamaBaseURL  string
	OllamaModel    string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Chroma configuration
	ChromaURL        string
	ChromaCollection string

	// Retrieval configuration
	MaxDistance float64
	TopK        int

	// Conversation configuration
	HistoryLimit int

	// Audit configuration
	AuditLogKey string
	AuditLogMax int64

	// Service configuration
	ServiceName string
}

func Load() *Config {
	return &Config{
		// NATS settings
		NatsURL:         getEnv("NATS_URL", "nats://localhost:4222"),
		NatsChatSubject: getEnv("NATS_CHAT_SUBJECT", "chat.message"),
		NatsTimeout:     getDurationEnv("NATS_TIMEOUT", 30*time.Second),

		// Redis settings
		RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Retention: getDurationEnv("CONVERSATION_RETENTION", 30*24*time.Hour),

		// Ollama settings
		OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3.2"),
		ConnectTimeout: getDurationEnv("OLLAMA_CONNECT_TIMEOUT", 10*time.Second),
		ReadTimeout:    getDurationEnv("OLLAMA_READ_TIMEOUT", 300*time.Second),

		// Chroma settings
		ChromaURL:        getEnv("CHROMA_URL", "http://localhost:8000"),
		ChromaCollection: getEnv("CHROMA_COLLECTION", "infinitepay_help"),

		// Retrieval settings
		MaxDistance: getFloatEnv("RAG_MAX_DISTANCE", 0.35),
		TopK:        getIntEnv("RAG_TOP_K", 5),

		// Conversation settings
		HistoryLimit: getIntEnv("HISTORY_LIMIT", 50),

		// Audit settings
		AuditLogKey: getEnv("AUDIT_LOG_KEY", "app_logs"),
		AuditLogMax: int64(getIntEnv("AUDIT_LOG_MAX", 10000)),

		// Service settings
		ServiceName: getEnv("SERVICE_NAME", "chat-infinite"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
