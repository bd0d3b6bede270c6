package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/giantswarm/micrologger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type ServerConfig struct {
	Gatherer prometheus.Gatherer
	Logger   micrologger.Logger

	Address string
}

// Server exposes the gathered metrics on /metrics for the lifetime of a
// scenario run.
type Server struct {
	gatherer prometheus.Gatherer
	logger   micrologger.Logger

	address string
}

func NewServer(config ServerConfig) (*Server, error) {
	if config.Gatherer == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Gatherer must not be empty", config)
	}
	if config.Logger == nil {
		return nil, microerror.Maskf(invalidConfigError, "%T.Logger must not be empty", config)
	}

	if config.Address == "" {
		return nil, microerror.Maskf(invalidConfigError, "%T.Address must not be empty", config)
	}

	s := &Server{
		gatherer: config.Gatherer,
		logger:   config.Logger,

		address: config.Address,
	}

	return s, nil
}

// Serve blocks until ctx is done. The listener is bound before Serve returns
// control to the HTTP server so bind errors surface immediately.
func (s *Server) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return microerror.Mask(err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(l)
	}()

	s.logger.LogCtx(ctx, "level", "debug", "message", "serving metrics", "address", l.Addr().String())

	select {
	case err := <-done:
		if err != nil && err != http.ErrServerClosed {
			return microerror.Mask(err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return microerror.Mask(err)
	}

	s.logger.LogCtx(ctx, "level", "debug", "message", "stopped serving metrics")

	return nil
}
