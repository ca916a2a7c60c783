// Command server runs the bastionlab data-plane daemon: the gRPC/REST
// facade of spec.md §4 wired to the frame registry, challenge service,
// signed-request keyring, and optional bearer-token policy. Grounded on
// the teacher's daemon/main.go, whose flag parsing, observability
// bring-up, and signal-driven graceful shutdown this follows closely,
// adapted from a QUIC file-transfer listener to a gRPC/REST data plane.
package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/yutiansut/bastionlab/internal/challenge"
	"github.com/yutiansut/bastionlab/internal/config"
	"github.com/yutiansut/bastionlab/internal/keyring"
	"github.com/yutiansut/bastionlab/internal/observability"
	"github.com/yutiansut/bastionlab/internal/ratelimit"
	"github.com/yutiansut/bastionlab/internal/registry"
	"github.com/yutiansut/bastionlab/internal/rpcfacade"
	"github.com/yutiansut/bastionlab/internal/token"
	"github.com/yutiansut/bastionlab/internal/validation"
)

func main() {
	grpcAddr := flag.String("grpc-addr", "127.0.0.1:50051", "gRPC server address")
	restAddr := flag.String("rest-addr", "127.0.0.1:8080", "REST server address")
	observAddr := flag.String("observ-addr", "127.0.0.1:9100", "Observability server address")
	keysDir := flag.String("keys-dir", "", "Directory of signing-key PEM files (defaults to config.DefaultConfig)")
	tokenPolicyPath := flag.String("token-policy", "", "Path to the ES256 public key enabling bearer-token verification; empty disables it")
	chunkSize := flag.Int("chunk-size", 0, "Max bytes per FetchDataFrame chunk (0 uses the default)")
	flag.Parse()

	logger := observability.NewLogger("bastionlab-server", "1.0.0", os.Stdout)
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker("1.0.0")

	if shutdown, err := observability.InitTracing(context.Background(), "bastionlab-server"); err == nil {
		defer shutdown(context.Background())
	}

	logger.Info("bastionlab server starting...")

	cfg, err := config.LoadConfig("")
	if err != nil {
		logger.Fatal(err, "failed to load config")
	}
	cfg.GRPCAddress = *grpcAddr
	cfg.RESTAddress = *restAddr
	cfg.ObservabilityAddress = *observAddr
	if *keysDir != "" {
		cfg.KeysDirectory = *keysDir
	}
	if *tokenPolicyPath != "" {
		cfg.TokenPolicyPath = *tokenPolicyPath
	}
	if *chunkSize > 0 {
		cfg.ChunkSize = *chunkSize
	}

	if err := validation.ValidateAddr(cfg.GRPCAddress); err != nil {
		logger.Fatal(err, "invalid grpc address")
	}
	if err := validation.ValidateAddr(cfg.RESTAddress); err != nil {
		logger.Fatal(err, "invalid rest address")
	}
	if err := validation.ValidateFilePath(cfg.KeysDirectory, true); err != nil {
		logger.Fatal(err, "keys directory is not usable")
	}
	if err := validation.ValidateRangeInt(cfg.ChunkSize, 1024, 4*1024*1024); err != nil {
		logger.Fatal(err, "chunk size out of range")
	}

	logger.Info("configuration loaded")

	keys, err := keyring.LoadDirectory(cfg.KeysDirectory)
	if err != nil {
		logger.Fatal(err, "failed to load signing keys")
	}
	logger.Info("signing keys loaded")

	if cfg.TokenPolicyPath != "" {
		if err := token.LoadPolicy(cfg.TokenPolicyPath); err != nil {
			logger.Fatal(err, "failed to load bearer-token policy")
		}
		logger.Info("bearer-token policy loaded")
	}

	reg := registry.New()
	challenges := challenge.New(cfg.ChallengeTTL)
	limiter := ratelimit.NewPerIdentity(rate.Limit(cfg.ChallengeRateLimit), cfg.ChallengeRateBurst)

	metrics.WithResidentFrames(func() float64 { return float64(reg.Count()) })
	metrics.WithChallengesOutstanding(func() float64 { return float64(challenges.Count()) })

	healthChecker.RegisterCheck("registry", observability.RegistryCheck(reg.Count))
	healthChecker.RegisterCheck("keyring", observability.KeyringCheck(keys.Count))
	healthChecker.RegisterCheck("token_policy", observability.TokenPolicyCheck(token.Enabled()))

	sweepStop := make(chan struct{})
	go challenges.Run(sweepStop, challenge.DefaultTTL/5)
	defer close(sweepStop)

	svc := rpcfacade.NewService(reg, challenges, keys, logger, metrics, cfg.ChunkSize, limiter)

	go startObservabilityServer(cfg.ObservabilityAddress, metrics, healthChecker, logger)

	grpcStop, restStop, err := rpcfacade.StartAPIServers(context.Background(), cfg.GRPCAddress, cfg.RESTAddress, svc, logger, metrics)
	if err != nil {
		logger.Fatal(err, "failed to start API servers")
	}
	logger.Info("API servers started: gRPC on " + cfg.GRPCAddress + ", REST on " + cfg.RESTAddress)

	logger.Info("bastionlab server running")
	logger.Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully...")
	grpcStop()
	restStop()
	logger.Info("server stopped")
}

func startObservabilityServer(addr string, metrics *observability.Metrics, health *observability.HealthChecker, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{Addr: addr, Handler: mux}
	logger.Info("observability server listening on " + addr + " (metrics, health, pprof)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "observability server error")
	}
}
