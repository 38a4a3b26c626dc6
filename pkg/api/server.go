/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api exposes the daemon's local control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mfreeman451/portalwatch/pkg/config"
	httpx "github.com/mfreeman451/portalwatch/pkg/http"
	"github.com/sirupsen/logrus"
)

const maxConfigBody = 64 << 10

var logger = logrus.WithField("module", "api")

// Options wires the server to the running daemon.
type Options struct {
	Monitor  Controller
	Settings SettingsStore
	Logs     LogSource
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server routes API requests.
type Server struct {
	opts     Options
	router   *mux.Router
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	s := &Server{
		opts:   opts,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}

	s.upgrader = websocket.Upgrader{CheckOrigin: httpx.SameOrigin}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/monitor/start", s.startMonitor).Methods(http.MethodPost)
	s.router.HandleFunc("/api/monitor/stop", s.stopMonitor).Methods(http.MethodPost)
	s.router.HandleFunc("/api/logs", s.getLogs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/config", s.getConfig).Methods(http.MethodGet)
	s.router.HandleFunc("/api/config", s.putConfig).Methods(http.MethodPut)
	s.router.HandleFunc("/api/stream", s.stream).Methods(http.MethodGet)

	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}
}

// Handler returns the root handler. CORS wraps the router so preflight
// requests never reach method matching.
func (s *Server) Handler() http.Handler {
	return httpx.CommonMiddleware(s.router)
}

// Hub returns the stream hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// NotifyRunning publishes a run state change to stream clients. It matches
// the monitor's OnRunningChanged callback.
func (s *Server) NotifyRunning(running bool) {
	s.hub.Publish(runningEvent(running))
}

// Run forwards log lines to stream clients. Clients are disconnected only
// when ctx ends; a closed log source returns ErrLogSourceClosed and leaves
// them connected so Run can be restarted.
func (s *Server) Run(ctx context.Context) error {
	err := s.hub.Forward(ctx, s.opts.Logs)
	if ctx.Err() != nil {
		s.hub.Close()
	}

	return err
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.opts.Monitor.Status())
}

func (s *Server) startMonitor(w http.ResponseWriter, _ *http.Request) {
	s.opts.Monitor.Start()
	httpx.WriteJSON(w, http.StatusOK, s.opts.Monitor.Status())
}

func (s *Server) stopMonitor(w http.ResponseWriter, _ *http.Request) {
	s.opts.Monitor.Stop()
	httpx.WriteJSON(w, http.StatusOK, s.opts.Monitor.Status())
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.WriteError(w, http.StatusBadRequest, errInvalidLimit)
			return
		}

		limit = n
	}

	lines := s.opts.Logs.Lines(limit)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		for _, l := range lines {
			fmt.Fprintln(w, l.String())
		}

		return
	}

	httpx.WriteJSON(w, http.StatusOK, lines)
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.opts.Settings.Snapshot().Redacted())
}

// putConfig merges the body over the current settings. A password equal
// to the redaction marker keeps the stored one.
func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	current := s.opts.Settings.Snapshot()
	next := current.Clone()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&next); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, fmt.Errorf("%w: %w", errInvalidBody, err))
		return
	}

	if next.Password == config.RedactedSecret {
		next.Password = current.Password
	}

	if err := s.opts.Settings.Update(next); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidSettings) {
			status = http.StatusBadRequest
		}

		logger.WithError(err).Warn("Settings update refused")
		httpx.WriteError(w, status, err)

		return
	}

	httpx.WriteJSON(w, http.StatusOK, s.opts.Settings.Snapshot().Redacted())
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Debug("Stream upgrade failed")
		return
	}

	c := s.hub.Add(conn, statusEvent(s.opts.Monitor.Status()))

	logger.WithField("remote", r.RemoteAddr).Debug("Stream client connected")

	go func() {
		defer s.hub.Remove(c)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
