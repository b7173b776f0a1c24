package db

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const sqliteFilename = "modmail.sqlite"

type SQLiteConfig struct {
	BusyTimeoutMs int
	WAL           bool
	ForeignKeys   bool
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Config struct {
	Driver      string
	DSN         string
	Pool        PoolConfig
	SQLite      SQLiteConfig
	AutoMigrate bool
}

func DefaultConfig() Config {
	return Config{
		Driver: "sqlite",
		DSN:    "",
		Pool: PoolConfig{
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 0,
		},
		SQLite: SQLiteConfig{
			BusyTimeoutMs: 5000,
			WAL:           true,
			ForeignKeys:   true,
		},
		AutoMigrate: true,
	}
}

// ResolveSQLiteDSN returns dsn when set. Otherwise it prefers an existing
// database in stateDir, then one in the working directory, and finally
// creates stateDir so a new database can live there.
func ResolveSQLiteDSN(dsn, stateDir string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn != "" {
		return dsn, nil
	}

	stateDir = strings.TrimSpace(stateDir)
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateDir = filepath.Join(home, ".modmail")
	}
	stateDB := filepath.Join(stateDir, sqliteFilename)
	localDB := filepath.Clean("./" + sqliteFilename)

	if _, err := os.Stat(stateDB); err == nil {
		return stateDB, nil
	}
	if _, err := os.Stat(localDB); err == nil {
		return localDB, nil
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", err
	}
	return stateDB, nil
}
