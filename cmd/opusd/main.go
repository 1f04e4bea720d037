package main

import (
	"flag"
	"net/http"
	"os"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opusledger/config"
	"opusledger/core/events"
	"opusledger/native/campaign"
	"opusledger/native/registry"
	"opusledger/native/reputation"
	"opusledger/native/royalty"
	"opusledger/observability/logging"
	"opusledger/rpc"
	"opusledger/state"
	"opusledger/storage"
)

// moduleAddress derives a deterministic vault address from a module name, so
// engine-held funds live in accounts no external key can spend from.
func moduleAddress(name string) [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte(name))
	copy(addr[:], hash[12:])
	return addr
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	env := os.Getenv("OPUS_ENV")
	if env == "" {
		env = "development"
	}
	logger := logging.Setup("opusd", env)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	treasury, err := cfg.PlatformTreasuryAddress()
	if err != nil {
		logger.Error("invalid platform treasury", "error", err)
		os.Exit(1)
	}
	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("invalid admin address", "error", err)
		os.Exit(1)
	}
	minDistribution, err := cfg.MinDistributionWei()
	if err != nil {
		logger.Error("invalid distribution threshold", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	// Bounded tail of recent events, readable over ledger_getEvents.
	emitter := events.NewLog()

	reputationEngine := reputation.NewEngine()
	reputationEngine.SetState(manager)
	reputationEngine.SetEmitter(emitter)
	reputationEngine.SetAdmin(admin)

	registryEngine := registry.NewEngine()
	registryEngine.SetState(manager)
	registryEngine.SetEmitter(emitter)
	registryEngine.SetReputation(reputationEngine.NewRecorder())

	royaltyEngine := royalty.NewEngine()
	royaltyEngine.SetState(manager)
	royaltyEngine.SetRegistry(registryEngine)
	royaltyEngine.SetEmitter(emitter)
	royaltyEngine.SetVault(moduleAddress("opusledger/royalty-vault"))
	royaltyEngine.SetPlatformTreasury(treasury)
	royaltyEngine.SetMinDistribution(minDistribution)
	royaltyEngine.SetReputation(reputationEngine.NewRecorder())

	campaignEngine := campaign.NewEngine()
	campaignEngine.SetState(manager)
	campaignEngine.SetRegistry(registryEngine)
	campaignEngine.SetEmitter(emitter)
	campaignEngine.SetVault(moduleAddress("opusledger/campaign-vault"))
	campaignEngine.SetPlatformTreasury(treasury)
	campaignEngine.SetPlatformFeeBps(cfg.PlatformFeeBps)
	campaignEngine.SetReputation(reputationEngine.NewRecorder())

	if cfg.MetricsAddress != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics endpoint", "addr", cfg.MetricsAddress)
			if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	server := rpc.NewServer(registryEngine, royaltyEngine, campaignEngine, reputationEngine, manager, logger)
	server.SetEventLog(emitter)
	logger.Info("opusd starting", "network", cfg.NetworkName, "listen", cfg.ListenAddress)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("rpc server terminated", "error", err)
		os.Exit(1)
	}
}
