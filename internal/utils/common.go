package utils

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile exports the variables of an env file into the process environment
// so they are picked up by the cli EnvVars. Variables already set are kept.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}
