package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order inside the invocation directory; every existing file
// is loaded. Existing process environment variables are never overwritten.
var envFiles = []string{".env", ".env.local"}

func loadEnvFile(dir string) error {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
		loaded = append(loaded, path)
	}
	if len(loaded) == 0 {
		return errors.New("no .env file found")
	}
	slog.Debug("Loaded environment variables", "files", loaded)
	return nil
}
