// File: internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort   string
	JWTSecretKey string
	DatabasePath string
	RedisAddr    string
	// AI provider settings.
	LLMAPIKey       string
	LLMBaseURL      string
	ChatModel       string
	EmbeddingAPIKey string
	EmbeddingModel  string
	// Vector search settings for source citations.
	PineconeAPIKey    string
	PineconeIndexHost string
	PineconeNamespace string
	RetrievalTopK     int
	// Context window budget in estimated tokens.
	ContextMaxTokens int
	// Seconds without a stream chunk before a turn is failed.
	StreamIdleTimeoutSecs int
	Environment           string
}

// Load reads configuration from environment variables or a .env file.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		JWTSecretKey:          getEnv("JWT_SECRET_KEY", ""),
		DatabasePath:          getEnv("DATABASE_PATH", "roomchat.db"),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		LLMAPIKey:             getEnv("LLM_API_KEY", ""),
		LLMBaseURL:            getEnv("LLM_BASE_URL", ""),
		ChatModel:             getEnv("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingAPIKey:       getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:        getEnv("EMBEDDING_MODEL_NAME", "text-embedding-ada-002"),
		PineconeAPIKey:        getEnv("PINECONE_API_KEY", ""),
		PineconeIndexHost:     getEnv("PINECONE_INDEX_HOST", ""),
		PineconeNamespace:     getEnv("PINECONE_NAMESPACE", "roomchat"),
		RetrievalTopK:         getEnvAsInt("RETRIEVAL_TOPK", 8),
		ContextMaxTokens:      getEnvAsInt("CONTEXT_MAX_TOKENS", 24000),
		StreamIdleTimeoutSecs: getEnvAsInt("STREAM_IDLE_TIMEOUT_SECS", 30),
		Environment:           env,
	}

	// Validation for production environments.
	if strings.ToLower(env) == "production" {
		missing := []string{}
		if cfg.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if cfg.LLMAPIKey == "" {
			missing = append(missing, "LLM_API_KEY")
		}
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
		if len(missing) > 0 {
			log.Fatalf("Missing required production environment variables: %v", missing)
		}
	}

	return cfg
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}
