package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/nepse-client/internal/api"
	"github.com/Rajchodisetti/nepse-client/internal/config"
	"github.com/Rajchodisetti/nepse-client/internal/nepse"
	"github.com/Rajchodisetti/nepse-client/internal/observ"
)

type globalFlags struct {
	configPath string
	baseURL    string
	logLevel   string
	logFormat  string
	decode     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "nepse",
		Short:         "Query the Nepal Stock Exchange data API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "override the API base URL")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug | info | warn | error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "json | console")
	root.PersistentFlags().StringVar(&g.decode, "decode", "", "decode source: auto | wasm | fallback")

	root.AddCommand(
		marketStatusCmd(g),
		securitiesCmd(g),
		securityCmd(g),
		indexCmd(g),
		tokenCmd(g),
		serveCmd(g),
	)
	return root
}

// load resolves config, flags and logging
func (g *globalFlags) load() (config.Root, error) {
	cfg := config.Default()
	if g.configPath != "" {
		c, err := config.Load(g.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if g.baseURL != "" {
		cfg.NEPSE.BaseURL = g.baseURL
	}
	if g.decode != "" {
		cfg.NEPSE.DecodeSource = g.decode
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	cfg.Log.Output = os.Stderr
	observ.InitLogging(cfg.Log)
	return cfg, nil
}

// session builds a client and an initialized state
func (g *globalFlags) session(ctx context.Context) (config.Root, *nepse.Client, nepse.ClientState, error) {
	cfg, err := g.load()
	if err != nil {
		return cfg, nil, nepse.ClientState{}, err
	}
	client, err := nepse.New(cfg.ClientConfig())
	if err != nil {
		return cfg, nil, nepse.ClientState{}, err
	}
	st, err := client.Initialize(ctx)
	if err != nil {
		return cfg, nil, nepse.ClientState{}, err
	}
	return cfg, client, st, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func marketStatusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "market-status",
		Short: "Show whether the market is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, st, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			_, status, err := client.MarketStatus(cmd.Context(), st)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func securitiesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "securities",
		Short: "List all securities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, st, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			_, list, err := client.Securities(cmd.Context(), st)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
}

func securityCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "security <symbol>",
		Short: "Show detail for one security",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, st, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			_, detail, err := client.SecurityDetail(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), detail)
		},
	}
}

func indexCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Show index values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, st, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			_, indices, err := client.Index(cmd.Context(), st)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), indices)
		},
	}
}

func tokenCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Derive and print a bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, st, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			next, tok, err := client.Token(cmd.Context(), st)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"token":  tok,
				"expiry": next.Token().Expiry.UTC().Format(time.RFC3339),
				"source": next.Decoders().Source,
			})
		},
	}
}

func serveCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve NEPSE data over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, st, err := g.session(cmd.Context())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewHost(client, st),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			observ.Log("host_listening", map[string]any{"addr": addr, "base_url": cfg.NEPSE.BaseURL})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
