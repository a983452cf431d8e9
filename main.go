package main

import (
	"context"
	"errors"
	"fmt"
	"menudash/client"
	"menudash/config"
	"menudash/dashboard"
	"menudash/database"
	"menudash/logger"
	"menudash/route"
	"menudash/web"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const usage = `usage: menudash [api|dashboard]

  api        serve the foods REST API
  dashboard  serve the admin dashboard (default)`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Production()); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.GinMode == gin.ReleaseMode || cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger.Info("Running in debug mode")
	}

	cmd := "dashboard"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "api":
		err = runAPI(ctx, cfg)
	case "dashboard":
		err = runDashboard(ctx, cfg)
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("exiting", zap.String("command", cmd), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func runAPI(ctx context.Context, cfg *config.Config) error {
	level := gormlogger.Info
	if cfg.Production() {
		level = gormlogger.Warn
	}
	if err := database.InitDatabase(cfg.DB, level); err != nil {
		return err
	}
	defer database.Close()
	logger.Info("Database ready", zap.String("driver", cfg.DB.Driver))

	router := route.NewRouter(logger.Named("api"), cfg.API.AllowedOrigins)
	logger.Info("CORS configured", zap.Strings("origins", cfg.API.AllowedOrigins))

	return serve(ctx, ":"+cfg.API.Port, router)
}

func runDashboard(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("dashboard")
	remote := client.New(cfg.Dashboard.APIBaseURL, cfg.Dashboard.APITimeout)
	dash := dashboard.NewController(remote, log)

	if err := dash.Load(ctx); err != nil {
		log.Warn("initial load failed, will retry on first page view",
			zap.String("api", cfg.Dashboard.APIBaseURL), zap.Error(err))
	}

	router := web.NewRouter(web.NewHandler(dash, log))
	return serve(ctx, ":"+cfg.Dashboard.Port, router)
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
