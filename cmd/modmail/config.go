package main

import (
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type exampleConfig struct {
	Discord struct {
		Token            string `yaml:"token"`
		ApplicationID    string `yaml:"application_id"`
		GuildID          string `yaml:"guild_id"`
		ForumID          string `yaml:"forum_id"`
		LogChannelID     string `yaml:"log_channel_id"`
		RegisterCommands bool   `yaml:"register_commands"`
		RequestTimeout   string `yaml:"request_timeout"`
		HandshakeTimeout string `yaml:"handshake_timeout"`
	} `yaml:"discord"`
	Relay struct {
		Prefixes       []string `yaml:"prefixes"`
		Commands       []string `yaml:"commands"`
		BackfillWindow string   `yaml:"backfill_window"`
	} `yaml:"relay"`
	DB struct {
		Driver      string `yaml:"driver"`
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
		SQLite      struct {
			BusyTimeoutMs int  `yaml:"busy_timeout_ms"`
			WAL           bool `yaml:"wal"`
			ForeignKeys   bool `yaml:"foreign_keys"`
		} `yaml:"sqlite"`
		Pool struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"pool"`
	} `yaml:"db"`
	Health struct {
		Listen string `yaml:"listen"`
	} `yaml:"health"`
	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		AddSource bool   `yaml:"add_source"`
	} `yaml:"logging"`
	FileStateDir string `yaml:"file_state_dir"`
}

func newExampleConfig() exampleConfig {
	var c exampleConfig
	c.Discord.Token = "${MODMAIL_DISCORD_TOKEN}"
	c.Discord.GuildID = "000000000000000000"
	c.Discord.ForumID = "000000000000000000"
	c.Discord.RegisterCommands = true
	c.Discord.RequestTimeout = (20 * time.Second).String()
	c.Discord.HandshakeTimeout = (45 * time.Second).String()
	c.Relay.Prefixes = []string{"!"}
	c.Relay.Commands = []string{"reply", "r"}
	c.Relay.BackfillWindow = time.Hour.String()
	c.DB.Driver = "sqlite"
	c.DB.AutoMigrate = true
	c.DB.SQLite.BusyTimeoutMs = 5000
	c.DB.SQLite.WAL = true
	c.DB.SQLite.ForeignKeys = true
	c.DB.Pool.MaxOpenConns = 1
	c.DB.Pool.MaxIdleConns = 1
	c.DB.Pool.ConnMaxLifetime = "0s"
	c.Health.Listen = ":8080"
	c.Logging.Level = "info"
	c.Logging.Format = "auto"
	c.FileStateDir = "~/.modmail"
	return c
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Print an example config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newExampleConfig()); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
