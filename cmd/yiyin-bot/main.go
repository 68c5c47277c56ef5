// yiyin-bot is a QQ group bot speaking OneBot v11 over a reverse WebSocket:
// the NapCat gateway dials in, the bot serves.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/functionx37/yiyin-bot/internal/bot"
	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/llm"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/plugin/choose"
	"github.com/functionx37/yiyin-bot/internal/plugin/emoji"
	"github.com/functionx37/yiyin-bot/internal/plugin/help"
	"github.com/functionx37/yiyin-bot/internal/plugin/mohe"
	"github.com/functionx37/yiyin-bot/internal/plugin/quotes"
	"github.com/functionx37/yiyin-bot/internal/plugin/roleplay"
	"github.com/functionx37/yiyin-bot/internal/plugin/symmetric"
	"github.com/functionx37/yiyin-bot/internal/plugin/tarot"
	"github.com/functionx37/yiyin-bot/internal/plugin/toggle"
	"github.com/functionx37/yiyin-bot/internal/plugin/translate"
	"github.com/functionx37/yiyin-bot/internal/plugin/wolfram"
	"github.com/functionx37/yiyin-bot/internal/render"
	"github.com/functionx37/yiyin-bot/internal/resource"
	"github.com/functionx37/yiyin-bot/internal/storage"
	"github.com/functionx37/yiyin-bot/internal/web"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "yiyin-bot",
		Short:         "QQ group bot speaking OneBot v11",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to the config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	ormCmd := &cobra.Command{
		Use:   "orm",
		Short: "Database schema management",
	}
	ormCmd.AddCommand(&cobra.Command{
		Use:   "upgrade",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgrade()
		},
	})

	root.AddCommand(serveCmd, ormCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, "config.example.yml")
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

func upgrade() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if err := store.Upgrade(); err != nil {
		return fmt.Errorf("schema upgrade: %w", err)
	}
	log.Info().Str("database", cfg.DatabasePath).Msg("schema up to date")
	return nil
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := resource.Ensure(cfg.MemeHome)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if err := store.Upgrade(); err != nil {
		return fmt.Errorf("schema upgrade: %w", err)
	}

	httpClient := web.NewClient()
	renderer := render.New(res.FontPaths(), res.Render)
	llmClient := llm.NewClient(cfg.LLM, httpClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	togglePlugin := toggle.New()
	helpPlugin := help.New()
	mohePlugin := mohe.New(res)

	// Order matters: earlier plugins win trigger conflicts, and the
	// trigger-less roleplay plugin runs last on unconsumed messages.
	plugins := []plugin.Plugin{
		helpPlugin,
		togglePlugin,
		choose.New(),
		tarot.New(res),
		quotes.New(cfg, renderer),
		symmetric.New(),
		translate.New(cfg.Tencent, httpClient),
		wolfram.New(cfg.Wolfram),
		emoji.New(),
		mohePlugin,
		roleplay.New(cfg.Roleplay, llmClient),
	}
	helpPlugin.SetRegistry(plugins)

	var features []toggle.Feature
	for _, p := range plugins {
		if p.Toggleable() {
			features = append(features, toggle.Feature{
				Key:         p.Key(),
				DisplayName: p.DisplayName(),
				DefaultOff:  plugin.IsDefaultOff(p),
			})
		}
	}
	togglePlugin.SetFeatures(features)

	var dispatcher *bot.Bot
	srv := onebot.NewServer(cfg.ListenAddr(), cfg.WSPath, cfg.AccessToken, func(ev *onebot.Event) {
		dispatcher.HandleEvent(ctx, ev)
	})
	dispatcher = bot.New(cfg, store, srv, httpClient, plugins)

	go mohe.NewScheduler(mohePlugin, srv, store).Run(ctx)

	log.Info().
		Str("listen", cfg.ListenAddr()).
		Str("path", cfg.WSPath).
		Int("plugins", len(plugins)).
		Msg("starting")
	return srv.Run(ctx)
}
