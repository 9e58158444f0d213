package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"janpos/terminal/internal/backend"
	"janpos/terminal/internal/capture"
	"janpos/terminal/internal/cart"
	"janpos/terminal/internal/config"
	"janpos/terminal/internal/httpapi"
	"janpos/terminal/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 1)

	productCache := backend.ProductCache(backend.NoopProductCache{})
	if cfg.RedisAddr != "" {
		redisCache := backend.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			productCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("product cache: redis")
		}
	} else {
		log.Println("product cache: noop")
	}

	client := backend.NewClient(cfg.BackendURL, productCache, time.Duration(cfg.CacheTTL)*time.Second)
	manager := capture.NewManager(cfg.CameraURL, capture.NewMJPEGOpener())
	if cfg.CameraURL == "" {
		log.Println("CAMERA_URL not set; scanning disabled, manual entry only")
	}

	crt := cart.New()
	controller := session.New(manager, client, crt)
	api := httpapi.New(controller, crt, client)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal listening on %s (backend %s)", cfg.Address(), cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	// Release the camera before the listener so no media track outlives the
	// process teardown.
	controller.CloseScan()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}
