package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/spf13/cobra"

	"github.com/jmcleod/latchkey/api"
	"github.com/jmcleod/latchkey/auth"
	bboltstorage "github.com/jmcleod/latchkey/storage/bbolt"
)

var (
	addr     string
	port     int
	dataDir  string
	rpID     string
	rpOrigin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local authentication service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := bboltstorage.NewStoreFromFile(filepath.Join(dataDir, "auth.db"), nil)
		if err != nil {
			return fmt.Errorf("failed to open auth storage: %w", err)
		}
		defer store.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		gate := api.NewBiometricGate()
		manager := auth.NewManager(store,
			auth.WithBiometric(gate),
			auth.WithLogger(logger),
		)

		apiOpts := []api.Option{
			api.WithLogger(logger),
			api.WithBiometricGate(gate),
		}
		if rpID != "" {
			wa, err := webauthn.New(&webauthn.Config{
				RPDisplayName: "Latchkey",
				RPID:          rpID,
				RPOrigins:     []string{rpOrigin},
			})
			if err != nil {
				return fmt.Errorf("failed to configure webauthn: %w", err)
			}
			apiOpts = append(apiOpts, api.WithWebAuthn(wa))
		}

		a := api.New(manager, apiOpts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", addr, port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM. The session dies with the
		// process, so shutting down also locks the secret.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Listening on %s:%d (data: %s)...\n", addr, port, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			manager.Lock()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1", "Address to bind")
	serveCmd.Flags().IntVarP(&port, "port", "p", 8787, "Port to listen on")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serveCmd.Flags().StringVar(&rpID, "rp-id", "", "WebAuthn relying party ID (enables biometric endpoints)")
	serveCmd.Flags().StringVar(&rpOrigin, "rp-origin", "http://localhost:8787", "WebAuthn relying party origin")
}
