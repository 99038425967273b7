package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zhouzirui/ocap-chat/internal/config"
	"github.com/zhouzirui/ocap-chat/internal/handler"
	"github.com/zhouzirui/ocap-chat/internal/handler/sessions"
	"github.com/zhouzirui/ocap-chat/internal/middleware"
	"github.com/zhouzirui/ocap-chat/internal/render"
	"github.com/zhouzirui/ocap-chat/internal/service/chat"
	"github.com/zhouzirui/ocap-chat/internal/service/gateway"
	"github.com/zhouzirui/ocap-chat/internal/store/session"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, baseURL string

	rootCmd := &cobra.Command{
		Use:           "ocap-chat",
		Short:         "OCAP Chat web front-end",
		Long:          "ocap-chat serves a browser chat UI that logs in against the OCAP API and forwards each message to its process endpoint.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), addr, baseURL)
		},
	}
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides PORT")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL, overrides BASE_URL")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return rootCmd
}

func run(parent context.Context, addrFlag, baseURLFlag string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if addrFlag != "" {
		if cfg.Server.Addr, err = config.ParseAddr(addrFlag); err != nil {
			return err
		}
	}
	if baseURLFlag != "" {
		cfg.API.BaseURL = baseURLFlag
	}

	closeLog := setupLogging(cfg.Log)
	defer closeLog()

	client := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.API.BaseURL,
		LoginTimeout:   cfg.API.LoginTimeout,
		ProcessTimeout: cfg.API.ProcessTimeout,
	})
	log.Printf("API gateway configured for %s", client.BaseURL())

	store, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer store.Close()

	limiter := middleware.NewRateLimiter(cfg.Server.LoginRatePerSecond, cfg.Server.LoginRateBurst)
	go limiter.RunCleanup(ctx)

	chatService := chat.NewService(client)
	router := handler.NewRouter(chatService, sessions.NewManager(store), render.NewMarkdown(render.WithHighlighting("monokai")), handler.Options{
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.Session.TTL,
		LoginLimiter: limiter,
	})

	return startServer(ctx, cfg.Server, router)
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	if session.StoreType(cfg.Store) != session.StoreTypeRedis {
		store := session.NewMemoryStore(cfg.TTL)
		go store.RunPruner(ctx, 5*time.Minute)
		log.Println("Session store: memory")
		return store, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("Session store: redis at %s", cfg.RedisAddr)
	return session.NewStore(session.StoreTypeRedis, session.WithRedisClient(client), session.WithTTL(cfg.TTL))
}

func setupLogging(cfg config.LogConfig) func() {
	if cfg.File == "" {
		return func() {}
	}

	fileLog := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, fileLog))
	log.Printf("logging to %s", cfg.File)

	return func() {
		log.SetOutput(os.Stderr)
		fileLog.Close()
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("OCAP Chat listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
