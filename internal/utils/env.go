package utils

import (
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadEnv reads .env (or the given files) into the process environment.
// Variables already set are not overridden.
func LoadEnv(logger *zap.Logger, filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		logger.Warn("ENV file not found or failed to load, using defaults", zap.Strings("files", filenames))
	} else {
		logger.Info("ENV file loaded successfully", zap.Strings("files", filenames))
	}
}
