package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load parses environment variables into cfg. A .env file in the working
// directory is read first when present; variables already set in the process
// environment take precedence over the file.
func Load(cfg any) error {
	return LoadFiles(cfg, ".env")
}

// LoadFiles is like Load but reads the given dotenv files. Missing files are
// ignored so the same binary runs with or without them.
func LoadFiles(cfg any, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
