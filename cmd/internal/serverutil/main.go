// Copyright 2026 Google LLC. All Rights Reserved.
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

// Package serverutil holds code for running throttle binaries.
package serverutil

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Main runs a binary's work next to an HTTP server exposing its metrics.
type Main struct {
	// HTTPEndpoint serves /metrics and /healthz. If empty no server is
	// started.
	HTTPEndpoint string

	// Gatherer is exposed on /metrics; prometheus.DefaultGatherer if nil.
	Gatherer prometheus.Gatherer

	// IsHealthy will be called whenever "/healthz" is called on the mux.
	// A nil return value from this function will result in a 200-OK response
	// on the /healthz endpoint.
	IsHealthy func(context.Context) error
	// HealthyDeadline is the maximum duration to wait for a successful
	// IsHealthy() call.
	HealthyDeadline time.Duration

	// ShutdownTimeout bounds how long in-flight HTTP requests may take once
	// the binary is stopping.
	ShutdownTimeout time.Duration
}

func (m *Main) healthz(rw http.ResponseWriter, req *http.Request) {
	if m.IsHealthy != nil {
		ctx, cancel := context.WithTimeout(req.Context(), m.HealthyDeadline)
		defer cancel()
		if err := m.IsHealthy(ctx); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_, _ = rw.Write([]byte(err.Error()))
			return
		}
	}
	_, _ = rw.Write([]byte("ok"))
}

// Handler returns the mux served on HTTPEndpoint. It deliberately does not
// include anything registered on http.DefaultServeMux.
func (m *Main) Handler() http.Handler {
	g := m.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", m.healthz)
	return mux
}

// Run runs work and, alongside it, the HTTP server. It returns once work has
// returned and ctx is done, so that metrics stay scrapeable until the caller
// cancels ctx. The first error from either side is returned.
func (m *Main) Run(ctx context.Context, work func(context.Context) error) error {
	if m.HealthyDeadline == 0 {
		m.HealthyDeadline = 5 * time.Second
	}
	if m.ShutdownTimeout == 0 {
		m.ShutdownTimeout = 5 * time.Second
	}

	g, gctx := errgroup.WithContext(ctx)
	if endpoint := m.HTTPEndpoint; endpoint != "" {
		srv := &http.Server{Addr: endpoint, Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			klog.Infof("HTTP server starting on %v", endpoint)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), m.ShutdownTimeout)
			defer cancel()
			klog.Infof("HTTP server on %v shutting down", endpoint)
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		if err := work(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	klog.Flush()
	return err
}

// AwaitSignal waits for standard termination signals, then runs the given
// function. Can early return if the passed in context is canceled, in which
// case the function is not run.
func AwaitSignal(ctx context.Context, doneFn func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		klog.Warningf("Signal received: %v", sig)
		doneFn()
	case <-ctx.Done():
		klog.Infof("AwaitSignal canceled: %v", ctx.Err())
	}
}
