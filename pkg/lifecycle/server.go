package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 5 * time.Second
)

var logger = logrus.WithField("module", "lifecycle")

// Service defines the interface that all services must implement.
type Service interface {
	Start(context.Context) error
	Stop(context.Context) error
}

// ServerOptions holds configuration for creating a server.
type ServerOptions struct {
	ListenAddr  string
	ServiceName string
	Service     Service
	Handler     http.Handler
	// Signals overrides the shutdown signals; nil means SIGINT and SIGTERM.
	Signals []os.Signal
}

// RunServer starts a service with the provided options and handles lifecycle.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.WithField("service", opts.ServiceName).Info("Starting service")

	lis, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           opts.Handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Create error channel for service errors
	errChan := make(chan error, 2)

	if err := opts.Service.Start(ctx); err != nil {
		_ = lis.Close()

		return fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
	}

	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("Starting HTTP server")

		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	return handleShutdown(ctx, cancel, srv, opts, errChan)
}

func handleShutdown(
	ctx context.Context, cancel context.CancelFunc, srv *http.Server, opts *ServerOptions, errChan chan error) error {
	signals := opts.Signals
	if signals == nil {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	defer signal.Stop(sigChan)

	var cause error

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received signal, initiating shutdown")
	case err := <-errChan:
		logger.WithError(err).Error("Server error, initiating shutdown")

		cause = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Context canceled, initiating shutdown")

		cause = ctx.Err()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	if err := opts.Service.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")

		return errors.Join(cause, fmt.Errorf("shutdown error: %w", err))
	}

	return cause
}
