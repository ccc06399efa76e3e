package log

import (
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the shared zap logger.
var Module = fx.Module("log",
	fx.Provide(New),
)

func New() (*zap.Logger, error) {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
