package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Discord
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.forum_id", "")
	viper.SetDefault("discord.log_channel_id", "")
	viper.SetDefault("discord.register_commands", true)
	viper.SetDefault("discord.request_timeout", 20*time.Second)
	viper.SetDefault("discord.handshake_timeout", 45*time.Second)

	// Relay
	viper.SetDefault("relay.prefixes", []string{"!"})
	viper.SetDefault("relay.commands", []string{"reply", "r"})
	viper.SetDefault("relay.backfill_window", time.Hour)

	// Database
	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.dsn", "")
	viper.SetDefault("db.auto_migrate", true)
	viper.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	viper.SetDefault("db.sqlite.wal", true)
	viper.SetDefault("db.sqlite.foreign_keys", true)
	viper.SetDefault("db.pool.max_open_conns", 1)
	viper.SetDefault("db.pool.max_idle_conns", 1)
	viper.SetDefault("db.pool.conn_max_lifetime", time.Duration(0))

	// Global
	viper.SetDefault("file_state_dir", "~/.modmail")
	viper.SetDefault("health.listen", "")
	viper.SetDefault("logging.format", "auto")
	viper.SetDefault("logging.add_source", false)
}
