package main

import (
	"github.com/daniacca/ecogrid/internal/ecosim"
	"github.com/daniacca/ecogrid/internal/storage"
)

// ecosimLoggerAdapter adapts the server's Logger to the ecosim.Logger
// interface.
type ecosimLoggerAdapter struct {
	logger *Logger
}

func (a *ecosimLoggerAdapter) Debugf(format string, v ...any) {
	a.logger.Debugf(format, v...)
}

func (a *ecosimLoggerAdapter) Infof(format string, v ...any) {
	a.logger.Infof(format, v...)
}

func (a *ecosimLoggerAdapter) Warnf(format string, v ...any) {
	a.logger.Warnf(format, v...)
}

func (a *ecosimLoggerAdapter) Errorf(format string, v ...any) {
	a.logger.Errorf(format, v...)
}

// Server is the HTTP and WebSocket front of the simulation engine.
type Server struct {
	manager       *ecosim.SessionManager
	store         storage.Store
	notifierMgr   *ecosim.NotificationManager
	hub           *WebSocketHub
	defaultParams ecosim.Params
	logger        *Logger
}

// NewServer wires a server around the given recording store.
func NewServer(logger *Logger, store storage.Store) *Server {
	ecosimLogger := &ecosimLoggerAdapter{logger: logger}
	notifierMgr := ecosim.NewNotificationManagerWithLogger(ecosimLogger)
	hub := NewWebSocketHub("live-stats")
	// Registration only fails on duplicate or empty ids; the hub id is fixed.
	_ = notifierMgr.RegisterNotifier(hub)

	return &Server{
		manager:       ecosim.NewSessionManagerWithLogger(ecosimLogger),
		store:         store,
		notifierMgr:   notifierMgr,
		hub:           hub,
		defaultParams: ecosim.DefaultParams(),
		logger:        logger,
	}
}

// SetDefaultParams replaces the parameter set used when a create request
// omits fields.
func (s *Server) SetDefaultParams(p ecosim.Params) {
	s.defaultParams = p
}

// Close shuts down push channels and the store.
func (s *Server) Close() {
	s.notifierMgr.Close()
	_ = s.store.Close()
}
