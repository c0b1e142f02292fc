// Copyright 2025 Tetrate
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
	"github.com/istio-ecosystem/avp-authz/internal/authz"
	"github.com/istio-ecosystem/avp-authz/internal/envelope"
)

// MsgNotImplemented is the body returned for the HTTP methods the raw server does not handle.
const MsgNotImplemented = "Method not implemented"

var (
	_ http.Handler = (*httpServer)(nil)
	_ run.Service  = (*httpServer)(nil)
)

// httpServer is the raw HTTP ext-authz server. Every GET and POST request, regardless of
// the path, is an authorization check.
type httpServer struct {
	log     telemetry.Logger
	config  *internal.Config
	handler authz.Handler
	router  chi.Router
	server  *http.Server

	// Listen allows overriding the default listener. It is meant to
	// be used in tests.
	l net.Listener
}

// NewHTTPServer creates a new raw HTTP ext-authz server.
func NewHTTPServer(cfg *internal.Config, handler authz.Handler) run.Unit {
	s := &httpServer{
		log:     internal.Logger(internal.Server),
		config:  cfg,
		handler: handler,
	}

	r := chi.NewRouter()
	r.Use(NewLogMiddleware().HTTP)
	r.Get("/*", s.check)
	r.Post("/*", s.check)
	r.MethodNotAllowed(notImplemented)
	s.router = r

	s.server = &http.Server{Handler: s}
	return s
}

// Name implements run.Unit.
func (s *httpServer) Name() string { return "HTTP Server" }

// Serve implements run.Service.
func (s *httpServer) Serve() error {
	// use test listener if set
	if s.l == nil {
		var err error
		s.l, err = net.Listen("tcp", ":"+strconv.Itoa(s.config.HTTPPort))
		if err != nil {
			return err
		}
	}

	s.log.Info("starting HTTP server", "addr", s.l.Addr())
	return s.server.Serve(s.l)
}

// GracefulStop implements run.Service.
func (s *httpServer) GracefulStop() {
	s.log.Info("stopping HTTP server")
	_ = s.server.Close()
}

// ServeHTTP implements http.Handler.
func (s *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *httpServer) check(w http.ResponseWriter, r *http.Request) {
	v := s.handler.Check(r.Context(), envelope.FromHTTPRequest(r))
	envelope.WriteHTTP(w, v)
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	envelope.WriteHTTP(w, envelope.Denied(http.StatusNotImplemented, MsgNotImplemented))
}
