// Package restserver exposes the movement pipeline over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/analysis"
	"github.com/chrissnell/circuitgrid/internal/log"
	"github.com/chrissnell/circuitgrid/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	service    *analysis.Service
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, service *analysis.Service, logger *zap.SugaredLogger) *Controller {
	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: sc,
		service:    service,
		logger:     logger,
	}

	if sc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}

	ctrl.handlers = NewHandlers(service, logger)
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CompressHandler(ctrl.handlers.Router()))
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Router configures the HTTP router with all endpoints
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.AccessLog(h.logger))

	router.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	router.HandleFunc("/routes", h.GetRoutes).Methods(http.MethodGet)
	router.HandleFunc("/routes/{route}", h.GetRouteDetails).Methods(http.MethodGet)
	router.HandleFunc("/movement-times", h.GetMovementTimes).Methods(http.MethodGet)
	router.HandleFunc("/movement-times", h.PostMovementTimes).Methods(http.MethodPost)
	router.HandleFunc("/timeline", h.PostTimeline).Methods(http.MethodPost)
	router.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodPost)

	return router
}
