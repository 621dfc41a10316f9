package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/isoko-app/isoko/internal/api"
	"github.com/isoko-app/isoko/internal/config"
	"github.com/isoko-app/isoko/internal/directory"
	"github.com/isoko-app/isoko/internal/messaging"
	"github.com/isoko-app/isoko/internal/messaging/discord"
	"github.com/isoko-app/isoko/internal/messaging/slack"
	"github.com/isoko-app/isoko/internal/negotiation"
	"github.com/isoko-app/isoko/internal/sweeper"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the negotiation API server and background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(conn, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweepErr := make(chan error, 1)
			go func() {
				sweepErr <- sweeper.Run(ctx, sweeper.Opts{
					Orchestrator: orch,
					Schedule:     cfg.Sweeps.Schedule,
					Out:          cmd.OutOrStdout(),
				})
			}()

			if err := api.Start(ctx, api.StartOpts{
				Orchestrator: orch,
				Port:         cfg.API.Port,
				Out:          cmd.OutOrStdout(),
			}); err != nil {
				return err
			}
			return <-sweepErr
		},
	}
}

// buildOrchestrator assembles the orchestrator with the configured directory
// and messaging stack: dispatch outbox in front of whichever ops notifiers
// have credentials.
func buildOrchestrator(conn *gorm.DB, cfg *config.Config) (*negotiation.Orchestrator, error) {
	var notifiers []messaging.Messenger
	if cfg.Notifiers.Slack.BotToken != "" {
		m, err := slack.New(slack.Opts{
			BotToken:  cfg.Notifiers.Slack.BotToken,
			ChannelID: cfg.Notifiers.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, m)
	}
	if cfg.Notifiers.Discord.Token != "" {
		m, err := discord.New(discord.Opts{
			Token:     cfg.Notifiers.Discord.Token,
			ChannelID: cfg.Notifiers.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, m)
	}
	if len(notifiers) == 0 {
		notifiers = append(notifiers, messaging.NewLog())
	}

	outbox, err := messaging.NewOutbox(conn, messaging.NewFanout(notifiers...))
	if err != nil {
		return nil, err
	}

	return negotiation.New(negotiation.Opts{
		DB:                   conn,
		Directory:            directory.NewDB(conn),
		Messenger:            outbox,
		DefaultWindowMinutes: cfg.Negotiation.WindowMinutes,
		QuoteExpiryMinutes:   cfg.Negotiation.QuoteExpiryMinutes,
		BestLimit:            cfg.Negotiation.BestLimit,
		ExpiringSoonWindow:   time.Duration(cfg.Sweeps.ExpiringSoonMinutes) * time.Minute,
	})
}
