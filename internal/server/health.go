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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/telemetry"

	"github.com/istio-ecosystem/avp-authz/internal"
)

const (
	HealthzPath = "/healthz"
	HealthPath  = "/health"
	MetricsPath = "/metrics"
)

var (
	_ http.Handler = (*healthServer)(nil)
	_ run.Service  = (*healthServer)(nil)
)

type healthServer struct {
	log    telemetry.Logger
	config *internal.Config
	router chi.Router
	server *http.Server

	// Listen allows overriding the default listener. It is meant to
	// be used in tests.
	l net.Listener
}

// NewHealthServer creates a new health server that also exposes the given metrics.
func NewHealthServer(config *internal.Config, metrics *internal.Metrics) run.Unit {
	hs := &healthServer{
		log:    internal.Logger(internal.Health),
		config: config,
	}

	r := chi.NewRouter()
	r.Get(HealthzPath, healthy)
	r.Get(HealthPath, healthy)
	if metrics != nil {
		r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}
	r.NotFound(hs.invalid)
	r.MethodNotAllowed(hs.invalid)
	hs.router = r

	hs.server = &http.Server{Handler: hs}
	return hs
}

// Name implements run.Unit.
func (hs *healthServer) Name() string {
	return "Health Server"
}

// Serve implements run.Service.
func (hs *healthServer) Serve() error {
	// use test listener if set
	if hs.l == nil {
		var err error
		hs.l, err = net.Listen("tcp", hs.getAddressAndPort())
		if err != nil {
			return err
		}
	}

	hs.log.Info("starting health server", "addr", hs.l.Addr(), "path", HealthzPath)
	return hs.server.Serve(hs.l)
}

// GracefulStop implements run.Service.
func (hs *healthServer) GracefulStop() {
	hs.log.Info("stopping health server")
	_ = hs.server.Close()
}

func (hs *healthServer) getAddressAndPort() string {
	port := internal.DefaultConfig().HealthPort
	if hs.config != nil && hs.config.HealthPort != 0 {
		port = hs.config.HealthPort
	}
	return ":" + strconv.Itoa(port)
}

// ServeHTTP implements http.Handler.
func (hs *healthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hs.router.ServeHTTP(w, r)
}

func (hs *healthServer) invalid(w http.ResponseWriter, r *http.Request) {
	hs.log.Debug("invalid request", "method", r.Method, "path", r.URL.Path)
	http.Error(w, "only GET "+HealthzPath+", "+HealthPath+" and "+MetricsPath+" are allowed", http.StatusBadRequest)
}

func healthy(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
