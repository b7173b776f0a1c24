package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/commands"
	"github.com/Jochem-W/modmail/internal/configutil"
	"github.com/Jochem-W/modmail/internal/format"
	"github.com/Jochem-W/modmail/internal/healthcheck"
	"github.com/Jochem-W/modmail/internal/lifecycle"
	"github.com/Jochem-W/modmail/internal/logutil"
	"github.com/Jochem-W/modmail/internal/recovery"
	"github.com/Jochem-W/modmail/internal/relay"
	"github.com/Jochem-W/modmail/internal/report"
	"github.com/Jochem-W/modmail/internal/retryutil"
	"github.com/Jochem-W/modmail/internal/tags"
	"github.com/Jochem-W/modmail/internal/transport"
	"github.com/Jochem-W/modmail/internal/transport/discord"
	"github.com/spf13/cobra"
)

const startupTimeout = 30 * time.Second

type runConfig struct {
	Token          string
	ApplicationID  string
	GuildID        string
	ForumID        string
	LogChannelID   string
	Register       bool
	Prefixes       []string
	Commands       []string
	BackfillWindow time.Duration
	HealthListen   string

	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
}

func runConfigFromFlags(cmd *cobra.Command) (runConfig, error) {
	cfg := runConfig{
		Token:          configutil.FlagOrViperString(cmd, "discord-token", "discord.token"),
		ApplicationID:  configutil.FlagOrViperString(cmd, "discord-application-id", "discord.application_id"),
		GuildID:        configutil.FlagOrViperString(cmd, "discord-guild-id", "discord.guild_id"),
		ForumID:        configutil.FlagOrViperString(cmd, "discord-forum-id", "discord.forum_id"),
		LogChannelID:   configutil.FlagOrViperString(cmd, "discord-log-channel-id", "discord.log_channel_id"),
		Register:       configutil.FlagOrViperBool(cmd, "register-commands", "discord.register_commands"),
		Prefixes:       configutil.FlagOrViperStringArray(cmd, "trigger-prefix", "relay.prefixes"),
		Commands:       configutil.FlagOrViperStringArray(cmd, "trigger-command", "relay.commands"),
		BackfillWindow: configutil.FlagOrViperDuration(cmd, "backfill-window", "relay.backfill_window"),
		HealthListen:   healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "health-listen", "health.listen")),

		RequestTimeout:   configutil.FlagOrViperDuration(cmd, "discord-request-timeout", "discord.request_timeout"),
		HandshakeTimeout: configutil.FlagOrViperDuration(cmd, "discord-handshake-timeout", "discord.handshake_timeout"),
	}
	cfg.Token = strings.TrimPrefix(cfg.Token, "Bot ")

	var missing []string
	if cfg.Token == "" {
		missing = append(missing, "discord.token")
	}
	if cfg.GuildID == "" {
		missing = append(missing, "discord.guild_id")
	}
	if cfg.ForumID == "" {
		missing = append(missing, "discord.forum_id")
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing %s (set via flags, config file or %s_* environment variables)", strings.Join(missing, ", "), envPrefix)
	}
	if cfg.BackfillWindow < 0 {
		return cfg, fmt.Errorf("invalid relay.backfill_window: %s", cfg.BackfillWindow)
	}
	return cfg, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and relay messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runConfigFromFlags(cmd)
			if err != nil {
				return err
			}
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, logger, cfg)
		},
	}

	cmd.Flags().String("discord-token", "", "Bot token.")
	cmd.Flags().String("discord-application-id", "", "Application id used to register commands (defaults to the bot user).")
	cmd.Flags().String("discord-guild-id", "", "Guild the relay serves.")
	cmd.Flags().String("discord-forum-id", "", "Forum channel holding the threads.")
	cmd.Flags().String("discord-log-channel-id", "", "Channel receiving error reports (optional).")
	cmd.Flags().Duration("discord-request-timeout", 0, "Timeout of each Discord REST call.")
	cmd.Flags().Duration("discord-handshake-timeout", 0, "Timeout of the gateway websocket handshake.")
	cmd.Flags().Bool("register-commands", true, "Overwrite the guild's slash commands at startup.")
	cmd.Flags().StringArray("trigger-prefix", nil, "Prefix of staff reply commands (repeatable).")
	cmd.Flags().StringArray("trigger-command", nil, "Name of staff reply commands (repeatable).")
	cmd.Flags().Duration("backfill-window", 0, "How far back messages sent after a previous thread are carried into a new one.")
	cmd.Flags().String("health-listen", "", "Address for the /health endpoint, e.g. :8080 (disabled when empty).")

	return cmd
}

func run(ctx context.Context, logger *slog.Logger, cfg runConfig) error {
	store, gdb, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	session, err := discord.NewSession(cfg.Token, discord.SessionOptions{
		RequestTimeout:   cfg.RequestTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})
	if err != nil {
		return err
	}
	adapter := discord.New(session)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	registry, err := tags.Sync(startCtx, adapter, cfg.ForumID)
	if err != nil {
		return fmt.Errorf("sync forum tags: %w", err)
	}
	branding := &format.Branding{}
	if guild, err := adapter.Guild(startCtx, cfg.GuildID); err != nil {
		logger.Warn("guild_fetch_error", "guild_id", cfg.GuildID, "error", err.Error())
	} else {
		branding.Name = guild.Name
		branding.IconURL = guild.IconURL
	}

	reporter := report.New(logger, adapter, cfg.LogChannelID)
	queue := relay.NewQueue(logger, reporter)
	prompts := relay.NewPrompts()

	processor := relay.NewProcessor(relay.ProcessorOptions{
		Transport: adapter,
		Store:     store,
		Tags:      registry,
		Prompts:   prompts,
		Trigger:   relay.NewTrigger(cfg.Prefixes, cfg.Commands),
		ForumID:   cfg.ForumID,
		Branding:  branding,
		Logger:    logger,
	})
	controller := lifecycle.New(lifecycle.Options{
		Transport:      adapter,
		Store:          store,
		Queue:          queue,
		Tags:           registry,
		Prompts:        prompts,
		GuildID:        cfg.GuildID,
		ForumID:        cfg.ForumID,
		Branding:       branding,
		BackfillWindow: cfg.BackfillWindow,
		Logger:         logger,
	})
	router := commands.NewRouter(commands.Handlers(controller), reporter, logger)

	// Listeners go in before the gateway opens so nothing sent during
	// recovery is missed; the queue holds it until recovery is done.
	removeMessage := adapter.OnMessage(func(msg transport.Message) {
		queue.Enqueue(msg)
	})
	defer removeMessage()
	removeInteraction := adapter.OnInteraction(func(in transport.Interaction, resp transport.Responder) {
		router.Dispatch(ctx, in, resp)
	})
	defer removeInteraction()

	queueCtx, stopQueue := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := queue.Run(queueCtx, processor.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("relay_queue_stopped", "error", err.Error())
		}
	}()
	defer func() {
		stopQueue()
		wg.Wait()
	}()

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	defer func() { _ = session.Close() }()
	logger.Info("discord_connected",
		"guild_id", cfg.GuildID,
		"forum_id", cfg.ForumID,
	)

	if cfg.Register {
		appID := cfg.ApplicationID
		if appID == "" && session.State != nil && session.State.User != nil {
			appID = session.State.User.ID
		}
		register := func(ctx context.Context) error {
			return adapter.RegisterCommands(ctx, appID, cfg.GuildID, router.Specs())
		}
		if err := register(startCtx); err != nil {
			logger.Warn("command_register_failed", "application_id", appID, "error", err.Error())
			retryutil.AsyncRetry(ctx, logger, "command_register", retryutil.Options{
				Delay:    5 * time.Second,
				Timeout:  startupTimeout,
				Attempts: 5,
			}, register, func(err error) {
				if err != nil && ctx.Err() == nil {
					reporter.Report(ctx, "command_register_error", err, "application_id", appID)
				}
			})
		} else {
			logger.Info("commands_registered", "count", len(router.Specs()))
		}
	}

	if cfg.HealthListen != "" {
		if _, err := healthcheck.StartServer(ctx, logger, cfg.HealthListen, "modmail", func() any {
			return queue.Stats()
		}); err != nil {
			logger.Warn("health_server_start_failed", "addr", cfg.HealthListen, "error", err.Error())
		}
	}

	if _, err := recovery.Run(ctx, recovery.Options{
		Store:    store,
		History:  adapter,
		Queue:    queue,
		Reporter: reporter,
		Logger:   logger,
	}); err != nil && ctx.Err() == nil {
		logger.Warn("recovery_incomplete", "error", err.Error())
	}

	<-ctx.Done()
	logger.Info("modmail_shutdown")
	return nil
}
