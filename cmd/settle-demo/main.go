// Command settle-demo exercises the settlement client's Fetch,
// FetchMany and FetchBatch against a running agentgate gateway, using a
// local-key signer. It is a demo harness, not a production client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/agentgate/paygate/pkg/settlement"
	"github.com/agentgate/paygate/pkg/signer"
	"github.com/ethereum/go-ethereum/ethclient"
)

func main() {
	var (
		rpcURL     = flag.String("rpc-url", os.Getenv("AGENTGATE_RPC_URL"), "chain RPC endpoint")
		privateKey = flag.String("private-key", os.Getenv("AGENTGATE_DEMO_PRIVATE_KEY"), "hex-encoded private key for the demo signer")
		chainID    = flag.Int64("chain-id", 8453, "chain id to settle on")
		mode       = flag.String("mode", "single", "single | many | batch")
		urls       = flag.String("urls", "http://localhost:8080/weather", "comma-separated list of target URLs")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *rpcURL == "" || *privateKey == "" {
		logger.Error("rpc-url and private-key are required")
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := ethclient.DialContext(ctx, *rpcURL)
	if err != nil {
		logger.Error("failed to connect to chain RPC", "error", err)
		os.Exit(1)
	}

	localSigner, err := signer.NewLocalSigner(client, *privateKey, big.NewInt(*chainID))
	if err != nil {
		logger.Error("failed to build signer", "error", err)
		os.Exit(1)
	}

	settler := &settlement.Client{
		Signer:  localSigner,
		ChainID: uint64(*chainID),
		OnEvent: func(ev settlement.Event) {
			logger.Info("settlement event", "type", ev.Type, "url", ev.URL, "txHash", ev.TxHash.Hex())
		},
	}

	targets := strings.Split(*urls, ",")

	switch *mode {
	case "single":
		req, _ := http.NewRequest(http.MethodGet, targets[0], nil)
		resp, err := settler.Fetch(ctx, req)
		if err != nil {
			logger.Error("fetch failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("status: %d\n", resp.StatusCode)
	case "many":
		reqs := buildRequests(targets)
		results, err := settler.FetchMany(ctx, reqs)
		if err != nil {
			logger.Error("fetchMany failed", "error", err)
			os.Exit(1)
		}
		printResults(results)
	case "batch":
		reqs := buildRequests(targets)
		results, err := settler.FetchBatch(ctx, reqs)
		if err != nil {
			logger.Error("fetchBatch failed", "error", err)
			os.Exit(1)
		}
		printResults(results)
	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

func buildRequests(targets []string) []*http.Request {
	reqs := make([]*http.Request, 0, len(targets))
	for _, url := range targets {
		req, err := http.NewRequest(http.MethodGet, strings.TrimSpace(url), nil)
		if err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func printResults(results []settlement.Result) {
	for i, res := range results {
		if res.Err != nil {
			fmt.Printf("[%d] error: %v\n", i, res.Err)
			continue
		}
		fmt.Printf("[%d] status: %d\n", i, res.Response.StatusCode)
	}
}
