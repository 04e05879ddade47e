// File: cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/iyunix/go-roomchat/internal/config"
	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/handlers"
	"github.com/iyunix/go-roomchat/internal/middleware"
	"github.com/iyunix/go-roomchat/internal/ratelimit"
	messagerepo "github.com/iyunix/go-roomchat/internal/repository/message"
	roomrepo "github.com/iyunix/go-roomchat/internal/repository/room"
	threadrepo "github.com/iyunix/go-roomchat/internal/repository/thread"
	"github.com/iyunix/go-roomchat/internal/services"
	"github.com/iyunix/go-roomchat/internal/services/ai"
	"github.com/iyunix/go-roomchat/internal/services/chat"
	"github.com/iyunix/go-roomchat/internal/services/retrieval"
	"github.com/iyunix/go-roomchat/internal/services/stream"
	"github.com/iyunix/go-roomchat/internal/session"
	"github.com/iyunix/go-roomchat/internal/transport"
)

const defaultRoomID = "lobby"

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()
	logger := services.NewLogger("server")

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}
	if err := db.AutoMigrate(&domain.Room{}, &domain.Thread{}, &domain.Message{}); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	// --- Repositories ---
	messageRepo := messagerepo.NewMessageRepository(db)
	threadRepo := threadrepo.NewThreadRepository(db)
	roomRepo := roomrepo.NewRoomRepository(db)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := roomRepo.EnsureExists(seedCtx, defaultRoomID, "Lobby"); err != nil {
		log.Fatalf("FATAL: Failed to seed default room: %v", err)
	}
	cancelSeed()

	// --- Usage counters ---
	// Redis keeps counters consistent across instances; a single-node
	// setup falls back to the in-process store.
	var counterStore ratelimit.CounterStore
	if cfg.RedisAddr != "" {
		counterStore = ratelimit.NewRedisCounterStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		logger.Warn("REDIS_ADDR not set; using in-process usage counters")
		memStore := ratelimit.NewMemoryCounterStore()
		defer memStore.Close()
		counterStore = memStore
	}
	limiter := ratelimit.NewLimiter(counterStore, ratelimit.DefaultTierLimits(), services.NewLogger("ratelimit"))

	// --- Services ---
	aiConfig := ai.DefaultConfig()
	aiConfig.LLMKey = cfg.LLMAPIKey
	aiConfig.LLMBaseURL = cfg.LLMBaseURL
	aiConfig.ChatModel = cfg.ChatModel
	aiConfig.EmbeddingKey = cfg.EmbeddingAPIKey
	aiConfig.EmbeddingModel = cfg.EmbeddingModel
	aiProvider, err := ai.NewOpenAIProvider(aiConfig)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize AI provider: %v", err)
	}

	// Source citations are optional; without an index the rooms still run.
	var sourceProvider retrieval.SourceProvider
	if cfg.PineconeAPIKey != "" && cfg.PineconeIndexHost != "" {
		retrievalConfig := retrieval.DefaultConfig()
		retrievalConfig.APIKey = cfg.PineconeAPIKey
		retrievalConfig.IndexHost = cfg.PineconeIndexHost
		retrievalConfig.Namespace = cfg.PineconeNamespace
		retrievalConfig.TopK = cfg.RetrievalTopK
		retrievalService, err := retrieval.NewService(retrievalConfig, services.NewLogger("retrieval"))
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize retrieval service: %v", err)
		}
		sourceProvider = retrievalService
	} else {
		logger.Warn("vector index not configured; AI responses will carry no sources")
	}

	chatConfig := chat.DefaultConfig()
	chatConfig.ContextMaxTokens = cfg.ContextMaxTokens
	contextBuilder, err := chat.NewContextBuilder(
		chatConfig,
		chat.NewCodeBlockCache(chatConfig.CodeCacheCapacity, chatConfig.CodeCacheLowWater),
		services.NewLogger("chat"),
	)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize context builder: %v", err)
	}

	streamConfig := stream.DefaultConfig()
	streamConfig.IdleTimeout = time.Duration(cfg.StreamIdleTimeoutSecs) * time.Second
	streamLogger := services.NewLogger("stream")

	hub := transport.NewHub(services.NewLogger("transport"))
	manager := session.NewManager(func(roomID string) session.RoomDeps {
		machine, err := stream.NewMachine(streamConfig, streamLogger)
		if err != nil {
			// Config was validated at startup; a per-room failure here
			// means the defaults themselves are broken.
			log.Fatalf("FATAL: Failed to create stream machine: %v", err)
		}
		return session.RoomDeps{
			Hub:      hub,
			Machine:  machine,
			Messages: messageRepo,
			Threads:  threadRepo,
			Limiter:  limiter,
			Provider: aiProvider,
			Sources:  sourceProvider,
			Contexts: contextBuilder,
			Logger:   services.NewLogger("session"),
		}
	})

	// --- Handlers ---
	wsHandler := handlers.NewWSHandler(manager, hub, services.NewLogger("ws"))
	historyHandler := handlers.NewHistoryHandler(messageRepo, threadRepo)
	authHandler := handlers.NewAuthHandler([]byte(cfg.JWTSecretKey), services.NewLogger("auth"))

	// --- Router Setup ---
	r := mux.NewRouter()
	identityMiddleware := middleware.NewIdentityMiddleware([]byte(cfg.JWTSecretKey), logger)
	connectLimit := middleware.ConnectLimitMiddleware(limiter, logger)

	r.Use(corsMiddleware)
	r.Use(middleware.RecoverPanic(logger))
	r.Use(middleware.LoggingMiddleware(logger))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	r.HandleFunc("/api/token", authHandler.IssueToken).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(identityMiddleware)
	api.HandleFunc("/rooms/{roomID}/threads", historyHandler.GetThreads).Methods("GET")
	api.HandleFunc("/threads/{threadID}/messages", historyHandler.GetThreadMessages).Methods("GET")

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(identityMiddleware, connectLimit)
	ws.HandleFunc("/rooms/{roomID}", wsHandler.Serve).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
	logger.Info("server stopped")
}
