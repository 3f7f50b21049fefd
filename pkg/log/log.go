package log

import (
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the application logger.
var Module = fx.Module("log",
	fx.Provide(NewLogger),
)

// NewLogger builds a zap logger. Production encoding unless ENVIRONMENT is
// development.
func NewLogger() (*zap.Logger, error) {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
