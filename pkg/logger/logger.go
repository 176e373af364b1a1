// pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
)

type Sugared = *zap.SugaredLogger

// New returns a JSON production logger in prod, a console logger otherwise.
func New(env string) Sugared {
	var z *zap.Logger
	if env == "prod" {
		z, _ = zap.NewProduction()
	} else {
		z, _ = zap.NewDevelopment()
	}
	return z.Named("tollgate").Sugar()
}

// Nop is handy for tests that need a logger but no output.
func Nop() Sugared { return zap.NewNop().Sugar() }
