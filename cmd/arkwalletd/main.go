// Package main provides arkwalletd, a minimal Ark L2 wallet client: it
// loads a mnemonic-derived identity, syncs its known vtxos against the
// configured Ark server, and optionally drives one settlement
// round.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/arkwallet/arkwalletd/internal/ark"
	"github.com/arkwallet/arkwalletd/internal/arkaddr"
	"github.com/arkwallet/arkwalletd/internal/arkprovider"
	"github.com/arkwallet/arkwalletd/internal/arkscript"
	"github.com/arkwallet/arkwalletd/internal/config"
	"github.com/arkwallet/arkwalletd/internal/identity"
	"github.com/arkwallet/arkwalletd/internal/notify"
	"github.com/arkwallet/arkwalletd/internal/settlement"
	"github.com/arkwallet/arkwalletd/internal/store"
	"github.com/arkwallet/arkwalletd/pkg/helpers"
	"github.com/arkwallet/arkwalletd/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.arkwallet", "Data directory")
		network     = flag.String("network", "", "Network override (mainnet, testnet, signet, mutinynet, regtest)")
		serverURL   = flag.String("server", "", "Ark server URL, overrides config")
		eventsAddr  = flag.String("events-addr", "", "Local address to serve the settlement event websocket on (empty disables it)")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		doSettle    = flag.Bool("settle", false, "Drive one settlement round for every known input, to a single change output")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("arkwalletd %s (commit: %s)", version, commit)
		return
	}

	cfg, err := config.Load(*dataDir)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	if *network != "" {
		cfg.Network = config.NetworkType(*network)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "error", err)
	}

	log = logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)
	log.Info("config loaded", "path", config.ConfigPath(*dataDir), "network", cfg.Network, "server", cfg.ServerURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache, err := store.New(&store.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		log.Fatal("failed to open store", "error", err)
	}
	defer cache.Close()

	id, err := loadOrCreateIdentity(cfg.Storage.DataDir, log)
	if err != nil {
		log.Fatal("failed to load identity", "error", err)
	}

	client := arkprovider.NewHTTPClient(cfg.ServerURL)

	info, err := client.GetInfo(ctx)
	if err != nil {
		log.Fatal("failed to fetch server info", "error", err)
	}

	vtxoScript, address, err := walletAddress(cfg, info, id)
	if err != nil {
		log.Fatal("failed to derive wallet address", "error", err)
	}
	log.Info("wallet address", "address", address)

	vtxos, err := client.GetVtxos(ctx, address)
	if err != nil {
		log.Warn("failed to sync vtxos from server", "error", err)
	} else if err := cache.SaveVtxos(vtxos); err != nil {
		log.Warn("failed to cache synced vtxos", "error", err)
	}

	known, err := cache.Vtxos()
	if err != nil {
		log.Fatal("failed to list cached vtxos", "error", err)
	}
	var knownTotal uint64
	for _, v := range known {
		knownTotal += v.Value
	}
	log.Info("known vtxos", "count", len(known), "total_btc", helpers.FormatAmount(knownTotal))

	var hub *notify.Hub
	if *eventsAddr != "" {
		hub = notify.NewHub()
		go hub.Run()
		mux := http.NewServeMux()
		mux.Handle("/events", hub)
		server := &http.Server{Addr: *eventsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("events server stopped", "error", err)
			}
		}()
		defer server.Close()
		log.Info("serving settlement events", "addr", *eventsAddr, "path", "/events")
	}

	if *doSettle {
		if err := runSettlement(ctx, cfg, client, id, cache, hub, vtxoScript, known, info, log); err != nil {
			log.Error("settlement failed", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	cancel()
}

// loadOrCreateIdentity reads dataDir/identity.mnemonic, generating and
// saving a fresh BIP-39 mnemonic on first run.
func loadOrCreateIdentity(dataDir string, log *logging.Logger) (*identity.PrivateKey, error) {
	path := filepath.Join(expandPath(dataDir), "identity.mnemonic")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		mnemonic, genErr := identity.GenerateMnemonic()
		if genErr != nil {
			return nil, fmt.Errorf("generating mnemonic: %w", genErr)
		}
		if mkErr := os.MkdirAll(filepath.Dir(path), 0700); mkErr != nil {
			return nil, fmt.Errorf("creating data directory: %w", mkErr)
		}
		if writeErr := os.WriteFile(path, []byte(mnemonic), 0600); writeErr != nil {
			return nil, fmt.Errorf("saving mnemonic: %w", writeErr)
		}
		log.Warn("generated a new wallet mnemonic", "path", path)
		return identity.FromMnemonic(mnemonic, "")
	}
	if err != nil {
		return nil, fmt.Errorf("reading mnemonic file: %w", err)
	}

	return identity.FromMnemonic(string(data), "")
}

// walletAddress derives the wallet's default vtxo script (spec.md §4.1)
// from the server's published exit delay and encodes its Ark address.
func walletAddress(cfg *config.Config, info *arkprovider.Info, id identity.Identity) (*arkscript.ScriptTree, string, error) {
	serverKey, err := ark.ParseXOnly(info.ServerPubKey)
	if err != nil {
		return nil, "", fmt.Errorf("parsing server pubkey: %w", err)
	}

	delay := arkscript.RelativeLocktime{Unit: arkscript.DelaySeconds, Value: info.UnilateralExitDelaySeconds}
	tree, err := arkscript.NewDefaultVtxoScript(id.XOnlyPublicKey(), serverKey, delay)
	if err != nil {
		return nil, "", fmt.Errorf("building vtxo script: %w", err)
	}

	out := tree.OutputScript()
	var tweaked [32]byte
	copy(tweaked[:], out[2:])
	var server [32]byte
	copy(server[:], serverKey[:])

	addr, err := arkaddr.Encode(cfg.Network.HRP(), server, tweaked)
	if err != nil {
		return nil, "", fmt.Errorf("encoding address: %w", err)
	}
	return tree, addr, nil
}

// runSettlement drives a single settlement round that spends every known
// vtxo back to the wallet's own address (a consolidation round), the
// simplest settlement shape the engine supports.
func runSettlement(
	ctx context.Context,
	cfg *config.Config,
	client arkprovider.ArkClient,
	id identity.Identity,
	cache *store.Store,
	hub *notify.Hub,
	vtxoScript *arkscript.ScriptTree,
	vtxos []ark.Vtxo,
	info *arkprovider.Info,
	log *logging.Logger,
) error {
	if len(vtxos) == 0 {
		log.Info("no known vtxos to settle")
		return nil
	}

	var total uint64
	inputs := make([]ark.SettlementInput, 0, len(vtxos))
	for _, v := range vtxos {
		inputs = append(inputs, ark.NewVtxoInput(v))
		total += v.Value
	}

	forfeitScript, err := forfeitOutputScript(cfg.Network, info.ForfeitAddress)
	if err != nil {
		return fmt.Errorf("decoding server forfeit address: %w", err)
	}

	engine := settlement.New(client, id, log.Component("settlement"))
	if hub != nil {
		notify.WatchEngine(hub, engine)
	}

	params := settlement.Params{
		Inputs:              inputs,
		Outputs:             []ark.SettlementOutput{{Script: vtxoScript.OutputScript(), Amount: total}},
		ServerForfeitScript: forfeitScript,
	}

	result, err := engine.Run(ctx, params)
	if err != nil {
		return err
	}

	log.Info("settlement complete", "round", result.RoundTxid, "forfeits", result.ForfeitsSubmitted)

	return cache.SaveSettlementOutcome(store.SettlementOutcome{
		RoundTxid:         result.RoundTxid,
		ForfeitsSubmitted: result.ForfeitsSubmitted,
		SettlementSigned:  result.SettlementSigned,
		CompletedAt:       time.Now(),
	})
}

// forfeitOutputScript decodes the server's published forfeit address (§4.5
// "forfeit output") into the output script a forfeit transaction pays to,
// the way the teacher's swap/wallet packages turn an address string into a
// script via btcutil.DecodeAddress + txscript.PayToAddrScript.
func forfeitOutputScript(network config.NetworkType, address string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, chainParams(network))
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

func chainParams(network config.NetworkType) *chaincfg.Params {
	switch network {
	case config.NetworkMainnet:
		return &chaincfg.MainNetParams
	case config.NetworkTestnet:
		return &chaincfg.TestNet3Params
	case config.NetworkSignet, config.NetworkMutinynet:
		return &chaincfg.SigNetParams
	case config.NetworkRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
