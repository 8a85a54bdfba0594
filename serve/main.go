// Command synccit serves the SynnccIT editor backend: AI code actions, the
// command gate, workspace files and the interactive terminal channel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	synccit "github.com/synccit/synccit"
	"github.com/synccit/synccit/assist"
	"github.com/synccit/synccit/terminal"
	"github.com/synccit/synccit/workspace"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	watchDebounce   = 300 * time.Millisecond
	// upstreamTimeout bounds a single completion call.
	upstreamTimeout = 90 * time.Second
)

var (
	verbose      bool
	configPath   string
	addrFlag     string
	workspaceDir string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "synccit",
	Short:         "SynnccIT editor backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (credentials masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printJSON(cmd, maskSecrets(cfg))
	},
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the built-in default configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, synccit.DefaultConfig())
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and report problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := terminal.CompileAllow(cfg.Terminal.Allow); err != nil {
			return fmt.Errorf("terminal.allow: %w", err)
		}
		for _, w := range synccit.ValidateConfig(cfg) {
			fmt.Fprintln(cmd.OutOrStdout(), "warning:", w)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "synccit", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging (prompts and replies included)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $SYNCCIT_CONFIG_DIR/config.json)")

	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (overrides $SYNCCIT_ADDR and server.addr)")
	serveCmd.Flags().StringVarP(&workspaceDir, "workspace", "w", "", "Workspace root (overrides $SYNCCIT_WORKSPACE and workspace.root)")

	configCmd.AddCommand(configShowCmd, configDefaultsCmd, configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*synccit.Config, error) {
	if configPath != "" {
		return synccit.LoadConfigFile(configPath)
	}
	return synccit.LoadConfig()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func maskSecrets(cfg *synccit.Config) *synccit.Config {
	out := *cfg
	if out.Generation.APIKey != "" {
		out.Generation.APIKey = "***"
	}
	if out.Agent.APIKey != "" {
		out.Agent.APIKey = "***"
	}
	return &out
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, w := range synccit.ValidateConfig(cfg) {
		logger.Warn("config", zap.String("warning", w))
	}

	addr := addrFlag
	if addr == "" {
		addr = synccit.ResolveAddr(cfg)
	}
	root := workspaceDir
	if root == "" {
		root = synccit.ResolveWorkspaceRoot(cfg)
	}

	ws, err := workspace.New(root)
	if err != nil {
		return err
	}
	gate, err := terminal.New(cfg.Terminal, logger.Named("terminal"))
	if err != nil {
		return fmt.Errorf("terminal config: %w", err)
	}
	projects := workspace.NewProjectCache(logger.Named("project"))
	defer projects.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	watcher, err := workspace.NewWatcher(ws.Root(), watchDebounce, logger.Named("watch"))
	if err != nil {
		logger.Warn("file watcher disabled", zap.Error(err))
	} else {
		g.Go(func() error { return watcher.Run(ctx) })
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := Options{
		Config:     cfg,
		Dispatcher: assist.NewDispatcher(cfg, &http.Client{Timeout: upstreamTimeout}, logger.Named("assist")),
		Runner:     gate,
		Translator: assist.NewTranslator(cfg, gate, logger.Named("agent")),
		Workspace:  ws,
		Projects:   projects,
		Watcher:    watcher,
		Logger:     logger,
		Registry:   reg,
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewServer(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", addr),
			zap.String("workspace", ws.Root()),
			zap.String("ai_path", cfg.Server.AIPath),
			zap.String("terminal_path", cfg.Server.TerminalPath),
			zap.String("version", Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
