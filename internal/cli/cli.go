// Package cli builds the enginehostd command tree on top of Cobra:
// run starts the engine host, status reports its live counters, and
// reload/purge signal an already-running instance.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/beaver-engine/internal/config"
	"github.com/ChuLiYu/beaver-engine/internal/engine"
	"github.com/ChuLiYu/beaver-engine/internal/future"
	"github.com/ChuLiYu/beaver-engine/internal/history"
	"github.com/ChuLiYu/beaver-engine/internal/isolation"
	"github.com/ChuLiYu/beaver-engine/internal/metrics"
	"github.com/ChuLiYu/beaver-engine/internal/persistence"
	"github.com/ChuLiYu/beaver-engine/internal/reactor"
	"github.com/ChuLiYu/beaver-engine/internal/relinker"
	"github.com/ChuLiYu/beaver-engine/internal/signing"
	"github.com/ChuLiYu/beaver-engine/internal/slave"
	"github.com/ChuLiYu/beaver-engine/internal/transport"
	"github.com/ChuLiYu/beaver-engine/pkg/types"
)

var log = slog.Default()

var configFile string

// pidFilePath is overridden in tests so reload/purge never touch a
// real path on disk.
var pidFilePath = func(cfg *config.Config) string {
	if cfg.Manifest.Name == "" {
		return "enginehostd.pid"
	}
	return cfg.Manifest.Name + ".pid"
}

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "enginehostd",
		Short: "Distributed application-worker orchestration engine host",
		Long: `enginehostd multiplexes client requests to named applications,
dispatches jobs to managed slave processes, and periodically relinks
to a configured peer set.`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildStatusCommand())
	rootCmd.AddCommand(buildReloadCommand())
	rootCmd.AddCommand(buildPurgeCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the engine host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngineHost(configFile)
		},
	}
}

func runEngineHost(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.WriteFile(pidFilePath(cfg), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		log.Warn("could not write pid file", "err", err)
	}
	defer os.Remove(pidFilePath(cfg))

	collector := metrics.NewCollector()

	store, err := persistence.NewSQLiteStore(cfg.Persistence.Path)
	if err != nil {
		return fmt.Errorf("open persistence store: %w", err)
	}
	defer store.Close()

	var verifier signing.Verifier
	if cfg.Signing.Secret != "" {
		verifier = signing.NewHMACVerifier([]byte(cfg.Signing.Secret), time.Duration(cfg.Signing.TokenTTL))
	}

	backend := isolation.NewExecBackend()
	slaveEvents := make(chan slave.Event, 256)

	profile := types.Profile{
		Name:             cfg.Manifest.Name,
		StartupTimeout:   time.Duration(cfg.Profile.StartupTimeout),
		HeartbeatTimeout: time.Duration(cfg.Profile.HeartbeatTimeout),
		PoolCeiling:      cfg.Profile.PoolCeiling,
		Isolate:          types.IsolateSpec{Type: cfg.Profile.Isolate.Type, Args: cfg.Profile.Isolate.Args},
		MemoryMB:         cfg.Profile.Limits.MemoryMB,
		CPUShares:        cfg.Profile.Limits.CPUShares,
	}
	profiles := func(name string) (types.Profile, error) {
		p := profile
		p.Name = name
		return p, nil
	}

	futures := future.NewRegistry(&collector.Requests)
	engines := engine.NewRegistry(backend, profiles, slaveEvents, &collector.Engines, &collector.Threads, collector)
	historyStore := history.NewStore(cfg.Core.HistoryDepth)

	requests := make(chan transport.ClientFrame, cfg.Net.Watermark)
	server := transport.NewServer(func(f transport.ClientFrame) { requests <- f }, cfg.Net.Watermark)

	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(signals)

	locator := relinker.NewGRPCLocator()
	defer locator.Close()

	core := &reactor.Core{
		Futures:      futures,
		Engines:      engines,
		Persistence:  store,
		Verifier:     verifier,
		History:      historyStore,
		Responder:    server,
		Publisher:    server,
		MinProtocol:  cfg.Core.Protocol,
		EngineStats:  &collector.Engines,
		ThreadStats:  &collector.Threads,
		RequestStats: &collector.Requests,
		Requests:     requests,
		SlaveEvents:  slaveEvents,
		Signals:      signals,
		Locator:      locator,
		SelfLabel:    cfg.Manifest.Name,
		SelfEndpoint: cfg.Net.Listen,
	}
	core.Recover()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relink := relinker.New(cfg.Relinker.Endpoints, time.Duration(cfg.Relinker.Interval), locator)
	go relink.Run(ctx)

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			log.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	if err := server.Listen(cfg.Net.Listen); err != nil {
		return fmt.Errorf("bind engine host listener: %w", err)
	}
	core.Announce()

	go func() {
		log.Info("engine host listening", "addr", cfg.Net.Listen)
		if err := server.Serve(); err != nil {
			log.Error("transport server stopped", "err", err)
		}
	}()

	core.Run(ctx)
	server.Stop()
	return nil
}

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the engine host's live counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			stats, err := fetchStats(cfg)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(cfg, nil, err))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(cfg, stats, nil))
			return nil
		},
	}
}

// fetchStats is overridden in tests, which inject a canned response.
// The default implementation does not contact the engine host: it only
// checks that cfg.Net.Listen parses as host:port and always returns an
// "engine host not reachable" error, so outside tests status prints the
// configuration and that error, never live counters.
var fetchStats = func(cfg *config.Config) (map[string]interface{}, error) {
	if _, _, err := net.SplitHostPort(cfg.Net.Listen); err != nil {
		return nil, fmt.Errorf("engine host not reachable at %q: %w", cfg.Net.Listen, err)
	}
	return nil, fmt.Errorf("engine host not reachable at %q", cfg.Net.Listen)
}

func renderStatus(cfg *config.Config, stats map[string]interface{}, statErr error) string {
	out := "\n╔═══════════════════════════════════════════════════════════╗\n"
	out += "║              Engine Host Status                          ║\n"
	out += "╚═══════════════════════════════════════════════════════════╝\n\n"

	out += "📋 Configuration:\n"
	out += fmt.Sprintf("  ├─ Config File:      %s\n", filepath.Base(configFile))
	out += fmt.Sprintf("  ├─ Listen:           %s\n", cfg.Net.Listen)
	out += fmt.Sprintf("  ├─ Manifest:         %s\n", cfg.Manifest.Name)
	out += fmt.Sprintf("  └─ History Depth:    %d\n\n", cfg.Core.HistoryDepth)

	out += "📊 Live Counters:\n"
	if statErr != nil {
		out += fmt.Sprintf("  └─ ⚠️  %s\n\n", statErr)
		return out
	}
	for _, class := range []string{"engines", "threads", "requests"} {
		entry, _ := stats[class].(map[string]interface{})
		out += fmt.Sprintf("  ├─ %-10s total=%v alive=%v\n", class, entry["total"], entry["alive"])
	}
	out += "\n═══════════════════════════════════════════════════════════\n"
	return out
}

func buildReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running engine host to reload (clear futures/engines, re-run recovery)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signalRunningInstance(syscall.SIGHUP)
		},
	}
}

func buildPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Signal a running engine host to reload and erase persisted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return signalRunningInstance(syscall.SIGUSR1)
		},
	}
}

func signalRunningInstance(sig syscall.Signal) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	data, err := os.ReadFile(pidFilePath(cfg))
	if err != nil {
		return fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("parse pid file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}
