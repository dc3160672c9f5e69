// Command seed populates a running search service with a synthetic catalog
// through the admin bulk endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/storefront-search/internal/service"
	pkgconfig "github.com/utafrali/storefront-search/pkg/config"
	"github.com/utafrali/storefront-search/pkg/httpclient"
	"github.com/utafrali/storefront-search/pkg/logger"
)

// maxBatch matches the limit of the bulk endpoint.
const maxBatch = 500

type seedConfig struct {
	SearchURL  string        `env:"SEARCH_URL" envDefault:"http://localhost:8010"`
	AdminToken string        `env:"ADMIN_TOKEN"`
	Products   int           `env:"SEED_PRODUCTS" envDefault:"10000"`
	Seed       uint64        `env:"SEED_RANDOM" envDefault:"42"`
	BatchSize  int           `env:"SEED_BATCH_SIZE" envDefault:"500"`
	Timeout    time.Duration `env:"SEED_TIMEOUT" envDefault:"10m"`
	LogLevel   string        `env:"LOG_LEVEL" envDefault:"info"`
}

type bulkResponse struct {
	Data struct {
		Indexed int `json:"indexed"`
		Skipped int `json:"skipped"`
	} `json:"data"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		return fmt.Errorf("load seed config: %w", err)
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > maxBatch {
		return fmt.Errorf("SEED_BATCH_SIZE must be between 1 and %d", maxBatch)
	}

	log := logger.New("search-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelTimeout()

	products := generateProducts(cfg.Products, cfg.Seed)
	log.Info("generated products", slog.Int("count", len(products)))

	client := httpclient.New(httpclient.DefaultConfig())
	start := time.Now()
	var indexed, skipped int
	for i, batch := range batches(products, cfg.BatchSize) {
		res, err := postBatch(ctx, client, cfg, batch)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i+1, err)
		}
		indexed += res.Data.Indexed
		skipped += res.Data.Skipped
		log.Info("batch indexed",
			slog.Int("batch", i+1),
			slog.Int("indexed", res.Data.Indexed),
			slog.Int("skipped", res.Data.Skipped),
		)
	}

	log.Info("seed complete",
		slog.Int("indexed", indexed),
		slog.Int("skipped", skipped),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func postBatch(ctx context.Context, client *httpclient.Client, cfg seedConfig, batch []service.IndexProductInput) (*bulkResponse, error) {
	body, err := json.Marshal(map[string]any{"products": batch})
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.SearchURL+"/api/v1/search/bulk", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AdminToken)
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "search-service")
	}
	defer func() { _ = resp.Body.Close() }()

	var out bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	return &out, nil
}
