package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opd-ai/skirmish/internal/arenamove"
	"github.com/opd-ai/skirmish/internal/config"
	"github.com/opd-ai/skirmish/internal/metrics"
	"github.com/opd-ai/skirmish/internal/sockopt"
	"github.com/opd-ai/skirmish/pkg/logging"
	"github.com/opd-ai/skirmish/pkg/network"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	configPath  = flag.String("config", "", "optional TOML config file (flags and positional args win over it)")
	metricsAddr = flag.String("metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9100 (empty disables the exporter)")
	logLevel    = flag.String("log-level", string(logging.InfoLevel), "log level: debug, info, warn, error, fatal")
	logFormat   = flag.String("log-format", string(logging.TextFormat), "log format: text or json")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [port [max_players [map_name]]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.NewLogger(logging.Config{
		Level:       logging.LogLevel(*logLevel),
		Format:      logging.LogFormat(*logFormat),
		AddCaller:   false,
		EnableColor: true,
	})
	sysLog := logging.SystemLogger(log, "cmd-server")

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		sysLog.WithError(err).Fatal("loading config")
	}
	applyPositionalArgs(&cfg, flag.Args())

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	server := network.NewServer(cfg, arenamove.Move, arenamove.DefaultBounds(), log)
	server.SetMetrics(collector)
	server.SetSpawnFunc(spawnOnRing)

	if err := server.Start(); err != nil {
		sysLog.WithError(err).Fatal("starting server")
	}
	sockopt.Apply(server.Conn(), sockopt.DefaultTuning(), sysLog)

	addr := *metricsAddr
	if addr == "" {
		addr = config.MetricsAddress(*configPath)
	}
	var metricsServer *metrics.Server
	if addr != "" {
		metricsServer = metrics.NewServer(addr, reg)
		go func() {
			if err := metricsServer.Serve(); err != nil {
				sysLog.WithError(err).Error("metrics server stopped")
			}
		}()
		sysLog.WithField("address", addr).Info("metrics exporter listening")
	}

	sysLog.WithFields(map[string]interface{}{
		"address":     cfg.Address,
		"max_players": cfg.MaxPlayers,
		"map_name":    cfg.MapName,
		"tick_rate":   cfg.TickRate,
	}).Info("server ready")

	runLoop(server, cfg.TickRate, sysLog)

	sysLog.Info("shutting down")
	if err := server.Stop(); err != nil {
		sysLog.WithError(err).Warn("error while stopping server")
	}
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(ctx)
	}
}

// applyPositionalArgs layers spec.md's documented "port max_players
// map_name" invocation on top of cfg, which already carries the config
// file's values (or DefaultServerConfig's). Positional args always win,
// matching cmd/server's documented precedence.
func applyPositionalArgs(cfg *network.ServerConfig, args []string) {
	if len(args) > 0 && args[0] != "" {
		cfg.Address = ":" + args[0]
	}
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			cfg.MaxPlayers = n
		}
	}
	if len(args) > 2 {
		cfg.MapName = args[2]
	}
}

// spawnOnRing places each new player evenly around a ring centered on the
// arena, so a handful of test clients never spawn stacked on each other.
// Spawn-point selection proper belongs to a game-rules layer external to
// this module; this is the minimal stand-in cmd/server needs to be
// runnable on its own.
func spawnOnRing(playerID uint16) (x, y float32) {
	const radius = 300
	angle := float64(playerID) * 2.399963 // golden-angle spacing
	return radius * float32(math.Cos(angle)), radius * float32(math.Sin(angle))
}

func runLoop(server *network.Server, tickRate int, log *logrus.Entry) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frame := time.Second / time.Duration(max(tickRate, 1))
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("interrupt received")
			return
		case <-ticker.C:
			server.Update()
		}
	}
}
