package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/cache"
	"shopmate/backend/internal/config"
	"shopmate/backend/internal/httpapi"
	"shopmate/backend/internal/service"
	"shopmate/backend/internal/store"
	"shopmate/backend/internal/store/memory"
	pgstore "shopmate/backend/internal/store/postgres"
	"shopmate/backend/internal/store/rest"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("repository: %v", err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	var (
		carts cache.CartStore  = cache.NewMemoryCartStore(cfg.CartTTL())
		sales cache.SalesCache = cache.NoopSalesCache{}
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable (%v), using in-memory carts and no sales cache", err)
			_ = client.Close()
		} else {
			carts = cache.NewRedisCartStore(client, cfg.CartTTL())
			sales = cache.NewRedisSalesCache(client)
			closers = append(closers, client.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: in-memory carts, no sales cache")
	}

	svc := service.New(repo, carts, sales,
		service.WithSalesTTL(cfg.SalesCacheTTL()),
		service.WithPageSize(cfg.ReportPageSize),
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("shopmate backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

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

	log.Println("server stopped")
}

// openRepository picks the shop data backend: the remote data service when
// SHOP_API_URL is set, Postgres when DATABASE_URL is set, otherwise a seeded
// in-memory store.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	switch {
	case cfg.ShopAPIURL != "":
		client, err := rest.New(cfg.ShopAPIURL, cfg.ShopAPITimeout())
		if err != nil {
			return nil, nil, err
		}
		log.Printf("repository: shop data service at %s", cfg.ShopAPIURL)
		return client, nil, nil
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		log.Println("repository: postgres")
		return pg, pg.Close, nil
	default:
		log.Printf("repository: in-memory (demo account %s)", memory.SeedOwnerEmail)
		return memory.NewSeeded(), nil, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.ShopAPIURL != "" && cfg.DatabaseURL != "" {
		return fmt.Errorf("set only one of SHOP_API_URL and DATABASE_URL")
	}
	return nil
}
