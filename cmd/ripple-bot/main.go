// Command ripple-bot is a minimal queue bot built on the ripple coordinator.
// It connects a Discord gateway and a Lavalink-compatible audio node, then
// serves prefix commands (!join, !play, ...) in any guild it can see.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/driftvale/ripple"
	"github.com/driftvale/ripple/internal/config"
	"github.com/driftvale/ripple/internal/observe"
	gatewaydiscord "github.com/driftvale/ripple/pkg/gateway/discord"
	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ripple-bot: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("ripple-bot starting",
		"config", *configPath,
		"node", fmt.Sprintf("%s:%d", cfg.Node.Host, cfg.Node.Port),
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ripple-bot"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		slog.Error("failed to create Discord session", "err", err)
		return 1
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	if err := session.Open(); err != nil {
		slog.Error("failed to open Discord session", "err", err)
		return 1
	}
	defer session.Close()

	botID, err := types.ParseUserID(session.State.User.ID)
	if err != nil {
		slog.Error("failed to parse bot user ID", "err", err)
		return 1
	}

	asm := voice.NewAssembler()
	gw, err := gatewaydiscord.New(session, asm)
	if err != nil {
		slog.Error("failed to attach gateway adapter", "err", err)
		return 1
	}

	waitBudget := cfg.Node.WaitBudget
	if waitBudget == 0 {
		waitBudget = voice.DefaultMaxEvents
	}
	shardCount := cfg.Discord.ShardCount
	if shardCount == 0 {
		shardCount = 1
	}

	client, err := ripple.NewClient(ctx,
		ripple.WithNode(cfg.Node.Host, cfg.Node.Port, cfg.Node.Password),
		ripple.WithTLS(cfg.Node.TLS),
		ripple.WithBotID(botID),
		ripple.WithShardCount(shardCount),
		ripple.WithGateway(gw),
		ripple.WithHandler(&announcer{session: session}),
		ripple.WithConnectionWaitBudget(waitBudget),
	)
	if err != nil {
		slog.Error("failed to connect to audio node", "err", err)
		return 1
	}
	defer client.Close()

	bot := &bot{client: client, botID: botID}
	session.AddHandler(bot.onMessage)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux()}
		g.Go(func() error {
			slog.Info("metrics endpoint up", "addr", cfg.Server.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("bot ready — press Ctrl+C to shut down")
	<-gctx.Done()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
