// Command gateway runs a demo agentgate paywall in front of two priced
// endpoints. The endpoints' own business logic is out of scope (spec
// §1); they are stubbed as trivial opaque handlers so the 402
// challenge/verify/admit flow has something to protect.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/agentgate/paygate/pkg/config"
	"github.com/agentgate/paygate/pkg/ledger"
	"github.com/agentgate/paygate/pkg/paywall"
	"github.com/agentgate/paygate/pkg/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goccyjson "github.com/goccy/go-json"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := config.WithGracefulShutdown(context.Background(), logger)
	defer stop()

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		logger.Error("failed to connect to chain RPC", "error", err)
		os.Exit(1)
	}

	replayStore, closeReplay, err := buildReplayStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize replay store", "error", err)
		os.Exit(1)
	}
	defer closeReplay()

	pricing := paywall.NewPricingTable(map[string]paywall.PricingEntry{
		paywall.EndpointKey(http.MethodGet, "/weather"): {
			Amount: "0.001", Description: "current weather for a city",
		},
		paywall.EndpointKey(http.MethodPost, "/summarize"): {
			Amount: "0.01", Description: "summarize the posted text",
		},
	})

	middleware := &paywall.Middleware{
		Recipient: common.HexToAddress(cfg.RecipientAddress),
		Token: protocol.TokenInfo{
			Symbol:   cfg.TokenSymbol,
			Address:  common.HexToAddress(cfg.TokenAddress),
			Decimals: cfg.TokenDecimals,
		},
		ChainID:      cfg.ChainID,
		ChainName:    cfg.ChainName,
		Pricing:      pricing,
		Verifier:     ledger.NewVerifier(client),
		ReplayStore:  replayStore,
		Revenue:      paywall.NewRevenueCounters(),
		ExpiryWindow: cfg.PaymentExpiryWindow,
		Logger:       logger,
		Hook: func(_ context.Context, s paywall.Settlement) error {
			logger.Info("settlement admitted",
				"endpoint", s.Endpoint, "from", s.From.Hex(), "amount", s.Amount.String(), "txHash", s.Reference.TxHash.Hex())
			return nil
		},
	}

	app := fiber.New(fiber.Config{
		DisableHeaderNormalizing: true,
		JSONEncoder:              goccyjson.Marshal,
		JSONDecoder:              goccyjson.Unmarshal,
		DisableStartupMessage:    true,
	})

	app.Get("/.well-known/x-agentgate.json", adaptor.HTTPHandlerFunc(middleware.DiscoveryHandler("agentgate-demo")))
	app.Get("/weather", adaptor.HTTPHandler(middleware.Wrap(http.HandlerFunc(weatherHandler))))
	app.Post("/summarize", adaptor.HTTPHandler(middleware.Wrap(http.HandlerFunc(summarizeHandler))))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	logger.Info("starting agentgate demo gateway", "port", cfg.HTTPServerHost)
	if err := app.Listen(":" + cfg.HTTPServerHost); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func weatherHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = goccyjson.NewEncoder(w).Encode(map[string]string{"city": r.URL.Query().Get("city"), "forecast": "sunny"})
}

func summarizeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = goccyjson.NewEncoder(w).Encode(map[string]string{"summary": "demo summary"})
}

func buildReplayStore(ctx context.Context, cfg config.Config) (paywall.ReplayStore, func(), error) {
	switch cfg.ReplayBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return paywall.NewRedisReplayStore(client, "agentgate:replay:"), func() { client.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, func() {}, err
		}
		store := paywall.NewPostgresReplayStore(db)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, func() {}, err
		}
		return store, func() { db.Close() }, nil
	default:
		store := paywall.NewMemoryReplayStore()
		store.StartSweeper(ctx, time.Minute)
		return store, func() {}, nil
	}
}
