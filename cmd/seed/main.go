// Command seed populates a running webstore with products, stock in every
// seeded warehouse and a handful of orders through the public HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dpedwards/webstore/internal/domain"
	pkgconfig "github.com/dpedwards/webstore/pkg/config"
	apperrors "github.com/dpedwards/webstore/pkg/errors"
	"github.com/dpedwards/webstore/pkg/httpclient"
	"github.com/dpedwards/webstore/pkg/logger"
)

type seedConfig struct {
	BaseURL    string `env:"WEBSTORE_URL" envDefault:"http://localhost:8080"`
	Products   int    `env:"SEED_PRODUCTS" envDefault:"20"`
	Orders     int    `env:"SEED_ORDERS" envDefault:"5"`
	MaxStock   int    `env:"SEED_MAX_STOCK" envDefault:"50"`
	Warehouses []int  `env:"SEED_WAREHOUSES" envDefault:"1,2,3" envSeparator:","`
	Seed       uint64 `env:"SEED_RANDOM_SEED" envDefault:"1"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

type summary struct {
	Products      int
	StockRows     int
	Orders        int
	ClosedOrders  int
	RejectedClose int
}

func main() {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("webstore-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelTimeout()

	s := &seeder{
		cfg:    cfg,
		client: httpclient.New(httpclient.DefaultConfig()),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
		logger: log,
	}
	sum, err := s.run(ctx)
	if err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete",
		slog.Int("products", sum.Products),
		slog.Int("stock_rows", sum.StockRows),
		slog.Int("orders", sum.Orders),
		slog.Int("closed_orders", sum.ClosedOrders),
		slog.Int("rejected_closes", sum.RejectedClose),
	)
}

var catalogue = []struct {
	name string
	unit string
}{
	{"Apple", "kg"},
	{"Banana", "kg"},
	{"Hex Bolt M8", "pcs"},
	{"Wood Screw 4x40", "box"},
	{"Copper Wire 1.5mm", "m"},
	{"Paint White", "l"},
	{"Sandpaper P120", "sheet"},
	{"Cable Tie 200mm", "pack"},
}

type seeder struct {
	cfg    seedConfig
	client *httpclient.Client
	rng    *rand.Rand
	logger *slog.Logger
}

func (s *seeder) run(ctx context.Context) (summary, error) {
	var sum summary
	products := make([]domain.Product, 0, s.cfg.Products)

	for i := 0; i < s.cfg.Products; i++ {
		item := catalogue[i%len(catalogue)]
		body := map[string]any{
			"name":  fmt.Sprintf("%s #%d", item.name, i+1),
			"unit":  item.unit,
			"price": decimal.New(int64(50+s.rng.IntN(5000)), -2),
		}
		var p domain.Product
		if err := s.call(ctx, http.MethodPost, "/api/v1/product/add", body, &p); err != nil {
			return sum, fmt.Errorf("create product %d: %w", i+1, err)
		}
		products = append(products, p)
		sum.Products++

		for _, w := range s.cfg.Warehouses {
			qty := s.rng.IntN(s.cfg.MaxStock + 1)
			if qty == 0 {
				continue
			}
			path := fmt.Sprintf("/api/v1/warehouse/add/product/%s/warehouse/%d", p.ID, w)
			if err := s.call(ctx, http.MethodPost, path, map[string]int{"quantity": qty}, nil); err != nil {
				return sum, fmt.Errorf("stock product %s in warehouse %d: %w", p.ID, w, err)
			}
			sum.StockRows++
		}
	}
	s.logger.Info("products seeded", slog.Int("count", sum.Products), slog.Int("stock_rows", sum.StockRows))

	if len(products) == 0 {
		return sum, nil
	}

	for i := 0; i < s.cfg.Orders; i++ {
		var order domain.Order
		if err := s.call(ctx, http.MethodPost, "/api/v1/order/add", nil, &order); err != nil {
			return sum, fmt.Errorf("create order %d: %w", i+1, err)
		}
		sum.Orders++

		lines := 1 + s.rng.IntN(3)
		for j := 0; j < lines; j++ {
			p := products[s.rng.IntN(len(products))]
			body := map[string]any{"product_id": p.ID, "quantity": 1 + s.rng.IntN(s.cfg.MaxStock/2+1)}
			if err := s.call(ctx, http.MethodPost, "/api/v1/order/"+order.ID+"/positions", body, nil); err != nil {
				return sum, fmt.Errorf("add position to order %s: %w", order.ID, err)
			}
		}

		// Every other order stays open.
		if i%2 == 1 {
			continue
		}
		err := s.call(ctx, http.MethodPut, "/api/v1/order/close/"+order.ID, nil, nil)
		switch {
		case err == nil:
			sum.ClosedOrders++
		case errors.Is(err, apperrors.ErrConflict):
			sum.RejectedClose++
			s.logger.Info("order left open", slog.String("order_id", order.ID), slog.String("reason", err.Error()))
		default:
			return sum, fmt.Errorf("close order %s: %w", order.ID, err)
		}
	}
	return sum, nil
}

// call sends body as JSON and decodes the data half of the response into out.
// Non-2xx answers come back as *apperrors.AppError.
func (s *seeder) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := s.client.DoJSON(ctx, method, s.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return httpclient.ParseResponseError(resp, "webstore")
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode HTTP %d response: %w", resp.StatusCode, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
