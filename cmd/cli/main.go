package main

import (
	"os"
	"strings"

	"github.com/stockflow/stockflow/internal/config"
	"github.com/stockflow/stockflow/pkg/logger"
	"github.com/stockflow/stockflow/pkg/pg"
)

// Applies the goose migrations in --dir (default ./migrations) against the
// write database. Usage: cli --env=.env --dir=./migrations
func main() {
	err := config.Load(argValue("--env=", ".env"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	err = pg.Migrate(pgConf, argValue("--dir=", "./migrations"))
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

// argValue finds a --flag=value argument, falling back to def. Either way
// the path must exist.
func argValue(flag, def string) string {
	path := def
	for _, v := range os.Args {
		if strings.HasPrefix(v, flag) {
			path = strings.TrimPrefix(v, flag)
			break
		}
	}
	if _, err := os.Open(path); err != nil {
		logger.Error("failed to open "+path+", got error "+err.Error())
		return ""
	}
	return path
}
