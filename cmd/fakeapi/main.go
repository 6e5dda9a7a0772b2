package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/byuoitav/functions/internal/fakeapi"
	"github.com/byuoitav/functions/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr, level string
	var users []string

	cmd := &cobra.Command{
		Use:   "fakeapi",
		Short: "Run an in-memory functions server for local development",
		Long: `Run an in-memory functions server. Nothing is persisted; every restart
revokes all sessions.

Examples:
  fakeapi --addr :8080
  fakeapi --user alice:secret --user bob:hunter2`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := log.SetLevel(level); err != nil {
				return err
			}

			backend := fakeapi.New()
			for _, u := range users {
				name, pass, ok := strings.Cut(u, ":")
				if !ok || name == "" {
					return fmt.Errorf("invalid user %q, expected name:password", u)
				}

				backend.AddUser(name, pass)
			}

			return serve(cmd.Context(), addr, backend)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&level, "log-level", "info", "Log level")
	cmd.Flags().StringArrayVar(&users, "user", nil, "Seed a user as name:password, may be repeated")
	return cmd
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.L.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
	case <-ctx.Done():
	}

	log.L.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}

	return nil
}
