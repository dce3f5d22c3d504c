// cmd/client is a headless network-probe client: no rendering, no
// terrain, no ebiten. It connects to a cmd/server instance, drives the
// command/flush path from either a scripted input sequence or stdin
// lines, and logs every snapshot, delta-reconstructed state, and relayed
// gameplay event it receives. It exists to exercise the protocol the same
// way a test harness would, without requiring a renderer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opd-ai/skirmish/internal/arenamove"
	"github.com/opd-ai/skirmish/internal/config"
	"github.com/opd-ai/skirmish/pkg/logging"
	"github.com/opd-ai/skirmish/pkg/network"
	"github.com/sirupsen/logrus"
)

var (
	serverAddr = flag.String("server", "127.0.0.1:27960", "server address to connect to")
	name       = flag.String("name", "probe", "player name sent in the connect request")
	configPath = flag.String("config", "", "optional TOML config file (flags win over it)")
	script     = flag.String("script", "", "path to a scripted input file (one \"forward right angle buttons\" line per tick); empty reads commands from stdin")
	duration   = flag.Duration("duration", 0, "exit after this long; 0 runs until interrupted or the script/stdin is exhausted")
	logLevel   = flag.String("log-level", string(logging.InfoLevel), "log level: debug, info, warn, error, fatal")
	logFormat  = flag.String("log-format", string(logging.TextFormat), "log format: text or json")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.NewLogger(logging.Config{
		Level:       logging.LogLevel(*logLevel),
		Format:      logging.LogFormat(*logFormat),
		AddCaller:   false,
		EnableColor: true,
	})
	sysLog := logging.SystemLogger(log, "cmd-client")

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		sysLog.WithError(err).Fatal("loading config")
	}

	client := network.NewClient(cfg, arenamove.Move, log)
	if err := client.Connect(*name, *serverAddr); err != nil {
		sysLog.WithError(err).Fatal("connecting")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	commands := inputSource(sysLog)
	runProbe(ctx, client, cfg, commands, sysLog)

	client.Disconnect("probe finished")
}

// scriptedCommand is one line of driven input: forward/right thrust in
// [-1, 1], an absolute facing angle in radians, and a button bitmask.
type scriptedCommand struct {
	forward, right, angle float32
	buttons               uint32
}

// inputSource returns a channel of commands to drive, read from -script if
// given or stdin otherwise. Lines are "forward right angle buttons",
// whitespace-separated; malformed lines are skipped.
func inputSource(log *logrus.Entry) <-chan scriptedCommand {
	out := make(chan scriptedCommand, 16)
	r := os.Stdin
	closeWhenDone := false
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			log.WithError(err).Warn("opening script, falling back to stdin")
		} else {
			r = f
			closeWhenDone = true
		}
	}
	go func() {
		defer close(out)
		if closeWhenDone {
			defer r.Close()
		}
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			cmd, ok := parseLine(line)
			if !ok {
				log.WithField("line", line).Warn("skipping malformed input line")
				continue
			}
			out <- cmd
		}
	}()
	return out
}

func parseLine(line string) (scriptedCommand, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return scriptedCommand{}, false
	}
	forward, err1 := strconv.ParseFloat(fields[0], 32)
	right, err2 := strconv.ParseFloat(fields[1], 32)
	angle, err3 := strconv.ParseFloat(fields[2], 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return scriptedCommand{}, false
	}
	var buttons uint64
	if len(fields) > 3 {
		buttons, _ = strconv.ParseUint(fields[3], 10, 32)
	}
	return scriptedCommand{
		forward: float32(forward),
		right:   float32(right),
		angle:   float32(angle),
		buttons: uint32(buttons),
	}, true
}

// runProbe pumps Client.Update at the configured tick rate, applies the
// next scripted command (if any) to SendInput each frame, and logs
// snapshots, predicted local-player position, and any drained gameplay
// events.
func runProbe(ctx context.Context, client *network.Client, cfg network.ClientConfig, commands <-chan scriptedCommand, log *logrus.Entry) {
	tickRate := cfg.TickRate
	if tickRate < 1 {
		tickRate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	lastTick := uint32(math.MaxUint32)
	for {
		select {
		case <-ctx.Done():
			log.Info("probe stopping")
			return
		case <-ticker.C:
			client.Update()

			select {
			case cmd, ok := <-commands:
				if ok {
					client.SendInput(cmd.forward, cmd.right, cmd.angle, cmd.buttons)
				} else {
					commands = nil
					if *duration == 0 {
						log.Info("input exhausted, probe stopping")
						return
					}
				}
			default:
			}

			if snap := client.LastSnapshot(); snap != nil && snap.Tick != lastTick {
				lastTick = snap.Tick
				logSnapshot(client, snap, log)
			}
			for _, evt := range client.DrainEvents() {
				log.WithField("event", fmt.Sprintf("%T %+v", evt, evt)).Info("relayed event")
			}
		}
	}
}

func logSnapshot(client *network.Client, snap *network.GameStateSnapshot, log *logrus.Entry) {
	fields := logrus.Fields{
		"tick":        snap.Tick,
		"players":     len(snap.Players),
		"projectiles": len(snap.Projectiles),
	}
	if id, ok := client.PlayerID(); ok {
		fields["player_id"] = id
		if predicted, ok := client.PredictLocalPlayer(arenamove.DefaultBounds()); ok {
			fields["predicted_x"] = predicted.X
			fields["predicted_y"] = predicted.Y
		}
	}
	log.WithFields(fields).Info("snapshot received")
}
