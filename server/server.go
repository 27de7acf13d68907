package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vasilala/cache"
	"vasilala/config"
	"vasilala/core/auth"
	"vasilala/db"
	"vasilala/logger"
	"vasilala/repository"
	"vasilala/storage"

	"github.com/gorilla/mux"
)

// Start wires the gateway daemon together and runs it until SIGINT or
// SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxAge:     cfg.LogMaxAge,
	})

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	if err := db.AutoMigrateModels(&repository.DocumentRow{}, &auth.Credential{}); err != nil {
		logger.Fatal("failed to migrate schema", logger.ErrorField(err))
	}

	objects, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize object storage", logger.ErrorField(err))
	}

	docs := repository.NewGormDocumentStore(db.GormDB)
	identity := auth.NewProvider(db.GormDB, docs, cfg.JWTSecret,
		time.Duration(cfg.TokenTTLHours)*time.Hour, cfg.BcryptCost)
	bus := cache.NewNotificationBus(db.RedisClient)
	feed := cache.NewFeedCache(db.RedisClient)

	handler := NewAPIHandler(docs, objects, identity, bus, feed, cfg)
	router := NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Reload logging verbosity when .env changes.
	stopWatch, err := config.Watch(func(next *config.Config) {
		logger.SetLevel(logger.LogLevel(next.LogLevel))
	})
	if err != nil {
		logger.Warn("config watch unavailable", logger.ErrorField(err))
	} else {
		defer stopWatch()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("gateway daemon listening", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}
	logger.Info("server stopped")
}

// NewRouter builds the daemon's route table.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	writeLimit := RateLimit(db.RedisClient, "write", 120, time.Minute)
	authLimit := RateLimit(db.RedisClient, "auth", 10, time.Minute)

	// Auth runs outside the limiter so the limiter keys on the
	// authenticated user instead of the client IP.
	limitedWrite := func(next http.HandlerFunc) http.HandlerFunc {
		return h.AuthMiddleware(writeLimit(next).ServeHTTP)
	}

	// Identity.
	router.Handle("/api/auth/register", authLimit(http.HandlerFunc(h.RegisterHandler))).Methods(http.MethodPost)
	router.Handle("/api/auth/login", authLimit(http.HandlerFunc(h.LoginHandler))).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.LogoutHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/me", h.MeHandler).Methods(http.MethodGet)

	// Feed cache.
	router.HandleFunc("/api/feed/trending", h.TrendingHandler).Methods(http.MethodGet)

	// Live notifications.
	router.HandleFunc("/api/notifications/stream", h.AuthMiddleware(h.NotificationsWSHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/notify/{user_id}", limitedWrite(h.NotifyHandler)).Methods(http.MethodPost)

	// Object storage.
	router.HandleFunc("/api/upload/{kind}", limitedWrite(h.UploadHandler)).Methods(http.MethodPost)
	router.PathPrefix("/media/").HandlerFunc(h.ServeObjectHandler).Methods(http.MethodGet)

	// Documents.
	router.HandleFunc("/api/{collection}", h.QueryDocumentsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/{collection}", limitedWrite(h.CreateDocumentHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/{collection}/{id}", h.GetDocumentHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/{collection}/{id}", limitedWrite(h.UpdateDocumentHandler)).Methods(http.MethodPatch)
	router.HandleFunc("/api/{collection}/{id}", limitedWrite(h.DeleteDocumentHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/{collection}/{id}/increment", limitedWrite(h.IncrementHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/{collection}/{id}/array", limitedWrite(h.ArrayOpHandler)).Methods(http.MethodPost)

	return router
}
