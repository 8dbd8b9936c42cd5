package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/engymgr/internal/config"
	"github.com/berfenger/engymgr/internal/core/service"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	manager     *service.EnergyManager
	bank        *service.MeterBank
	gatherer    prometheus.Gatherer
}

// NewServer wires the HTTP verbs. gatherer may be nil when metrics are
// disabled.
func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	manager *service.EnergyManager, bank *service.MeterBank, gatherer prometheus.Gatherer) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
		manager:     manager,
		bank:        bank,
		gatherer:    gatherer,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
