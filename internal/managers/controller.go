package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/flightkml/internal/controllers/feedserver"
	"github.com/chrissnell/flightkml/internal/feed"
	"github.com/chrissnell/flightkml/internal/observability"
	"github.com/chrissnell/flightkml/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for the
// process's serving frontends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, c *config.ConfigData, pipeline *feed.Pipeline, metrics *observability.FeedCollector, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	fs, err := feedserver.NewController(ctx, wg, c.Server, pipeline, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating feed server: %w", err)
	}
	cm.controllers = append(cm.controllers, fs)

	return cm, nil
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %w", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}
