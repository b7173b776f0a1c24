package main

import (
	"github.com/Jochem-W/modmail/db"
	"github.com/Jochem-W/modmail/internal/statepaths"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

func dbConfigFromViper() db.Config {
	cfg := db.DefaultConfig()
	cfg.Driver = viper.GetString("db.driver")
	cfg.DSN = viper.GetString("db.dsn")
	cfg.AutoMigrate = viper.GetBool("db.auto_migrate")
	cfg.SQLite.BusyTimeoutMs = viper.GetInt("db.sqlite.busy_timeout_ms")
	cfg.SQLite.WAL = viper.GetBool("db.sqlite.wal")
	cfg.SQLite.ForeignKeys = viper.GetBool("db.sqlite.foreign_keys")
	cfg.Pool.MaxOpenConns = viper.GetInt("db.pool.max_open_conns")
	cfg.Pool.MaxIdleConns = viper.GetInt("db.pool.max_idle_conns")
	cfg.Pool.ConnMaxLifetime = viper.GetDuration("db.pool.conn_max_lifetime")
	return cfg
}

func openStore() (*db.Store, *gorm.DB, error) {
	gdb, err := db.Open(dbConfigFromViper(), statepaths.FileStateDir())
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(gdb), gdb, nil
}
