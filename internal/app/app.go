package app

import (
	"context"

	"go.uber.org/zap"
)

type App struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{logger: logger}
}

// Open builds the application graph. The returned cleanup closes the
// registries and the process store and must be called once.
func (a *App) Open(ctx context.Context, cfg ServeConfig) (*Application, func(), error) {
	return InitializeApplication(ctx, cfg, LoggingConfig{Logger: a.logger})
}

func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	application, cleanup, err := a.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return application.Serve(ctx)
}
