package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/nepse-client/internal/observ"
	"github.com/Rajchodisetti/nepse-client/internal/stubs"
)

func main() {
	var (
		addr     string
		auth     bool
		doubled  bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "stubs",
		Short: "Run a local fake of the NEPSE API",
		RunE: func(cmd *cobra.Command, args []string) error {
			observ.InitLogging(observ.LogConfig{Level: logLevel, Format: "console"})

			opts := []stubs.ServerOption{stubs.WithModule(stubs.DecodeModule(doubled))}
			if auth {
				opts = append(opts, stubs.WithAuth())
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           stubs.NewServer(opts...),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			observ.Log("stub_listening", map[string]any{"addr": addr, "auth": auth, "doubled": doubled})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			observ.Log("stub_stopped", nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8091", "listen address")
	cmd.Flags().BoolVar(&auth, "auth", true, "reject data calls without the derived token")
	cmd.Flags().BoolVar(&doubled, "doubled", false, "serve the doubled-index decode module")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug | info | warn | error")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
