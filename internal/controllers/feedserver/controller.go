// Package feedserver serves the rendered feeds over HTTP.
package feedserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/flightkml/internal/feed"
	"github.com/chrissnell/flightkml/internal/log"
	"github.com/chrissnell/flightkml/internal/observability"
	"github.com/chrissnell/flightkml/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Controller represents the feed server controller
type Controller struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	Server    http.Server
	pipeline  *feed.Pipeline
	metrics   *observability.FeedCollector
	publicURL string
	logger    *zap.SugaredLogger
	handlers  *Handlers
}

// NewController creates a new feed server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, pipeline *feed.Pipeline, metrics *observability.FeedCollector, logger *zap.SugaredLogger) (*Controller, error) {
	if pipeline == nil {
		return nil, errors.New("feed server requires a pipeline")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:       ctx,
		wg:        wg,
		pipeline:  pipeline,
		metrics:   metrics,
		publicURL: sc.PublicURL,
		logger:    logger,
	}

	if sc.Port == 0 {
		logger.Infof("server.port not provided; defaulting to %d", config.DefaultPort)
		sc.Port = config.DefaultPort
	}

	readTimeout, err := config.ParseDuration(sc.ReadTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	writeTimeout, err := config.ParseDuration(sc.WriteTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadTimeout = readTimeout
	ctrl.Server.WriteTimeout = writeTimeout

	return ctrl, nil
}

// StartController starts the HTTP server and stops it when the controller's
// context ends.
func (c *Controller) StartController() error {
	c.logger.Infof("Starting feed server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("feed server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the feed server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.Server.Shutdown(ctx); err != nil {
			c.logger.Errorf("feed server shutdown: %v", err)
		}
	}()

	return nil
}

// Handler returns the full middleware chain and router.
func (c *Controller) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(true),
	)
	return requestID(log.AccessLog(c.logger, recovery(c.setupRouter())))
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/feeds", c.handlers.ListFeeds).Methods(http.MethodGet)
	router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/{feed:[^/.]+}.kml", c.handlers.GetKML).Methods(http.MethodGet)
	router.HandleFunc("/{feed:[^/.]+}.kmz", c.handlers.GetKMZ).Methods(http.MethodGet)
	router.HandleFunc("/{feed:[^/.]+}/live.kml", c.handlers.GetLiveLink).Methods(http.MethodGet)

	return router
}

// requestID tags every request with an X-Request-ID, reusing the caller's.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(log.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(log.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(v...)
}
