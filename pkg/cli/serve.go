package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bayeuxd/bayeuxd/pkg/config"
	"github.com/bayeuxd/bayeuxd/pkg/engine"
	"github.com/bayeuxd/bayeuxd/pkg/logging"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 30 * time.Second

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

// serveFlags holds all parsed command-line flags for the serve command.
type serveFlags struct {
	configFile string

	host string
	port int

	connectInterval int
	connectTimeout  int

	reconnectionInterval        int
	reconnectionIntervalSeconds int

	expireClientIDsAfter        int
	expireClientIDsAfterSeconds int

	noValidation     bool
	chaosProbability float64
	maxLogEntries    int

	logLevel  string
	logFormat string
	debug     bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock Bayeux server (foreground)",
	Long: `Start the mock Bayeux server. The Bayeux endpoint is served at /cometd
over both HTTP long-polling and WebSocket. The control API (session listing,
event delivery, request history, metrics) is served on the same port.

Configuration layers in order of precedence, lowest first: built-in defaults,
the --config file, BAYEUXD_* environment variables, then explicit flags.`,
	Example: `  # Start with defaults on localhost:8080
  bayeuxd serve

  # Hold connects for 30s, tell clients to wait 500ms between polls
  bayeuxd serve --connect-timeout 30000 --connect-interval 500

  # Expire clientIds after 10 connects
  bayeuxd serve --expire-client-ids-after 10

  # Fail roughly a third of non-handshake requests
  bayeuxd serve --chaos-probability 0.33`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, &serveFlagVals)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	registerServeFlags(serveCmd, &serveFlagVals)
}

func registerServeFlags(cmd *cobra.Command, f *serveFlags) {
	d := config.Default()

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to YAML/JSON configuration file")
	cmd.Flags().StringVar(&f.host, "host", d.Host, "Listen address")
	cmd.Flags().IntVarP(&f.port, "port", "p", d.Port, "Listen port")

	cmd.Flags().IntVar(&f.connectInterval, "connect-interval", d.ConnectInterval, "Advised wait between connects in milliseconds")
	cmd.Flags().IntVar(&f.connectTimeout, "connect-timeout", d.ConnectTimeout, "Long-poll hold duration in milliseconds")

	cmd.Flags().IntVar(&f.reconnectionInterval, "reconnection-interval", 0, "Force an immediate reconnect after this many connects (0 = disabled)")
	cmd.Flags().IntVar(&f.reconnectionIntervalSeconds, "reconnection-interval-seconds", 0, "Force an immediate reconnect after this many seconds (0 = disabled)")

	cmd.Flags().IntVar(&f.expireClientIDsAfter, "expire-client-ids-after", 0, "Expire clientIds after this many connects (0 = disabled)")
	cmd.Flags().IntVar(&f.expireClientIDsAfterSeconds, "expire-client-ids-after-seconds", 0, "Expire clientIds after this many seconds (0 = disabled)")

	cmd.Flags().BoolVar(&f.noValidation, "no-validation", false, "Disable request validation")
	cmd.Flags().Float64Var(&f.chaosProbability, "chaos-probability", 0, "Probability of a chaos fault per non-handshake request (0.0-1.0)")
	cmd.Flags().IntVar(&f.maxLogEntries, "max-log-entries", d.MaxLogEntries, "Maximum request log entries kept for the control API")

	cmd.Flags().StringVar(&f.logLevel, "log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", d.LogFormat, "Log format (text, json)")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Shorthand for --log-level debug")
}

// buildConfig layers defaults, the config file, the environment, and finally
// any flags the user actually set.
func buildConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	cfg := config.Default()

	if f.configFile != "" {
		if err := config.LoadFile(f.configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// Only flags the user passed explicitly override the lower layers.
	overlays := map[string]func(){
		"host":                            func() { cfg.Host = f.host },
		"port":                            func() { cfg.Port = f.port },
		"connect-interval":                func() { cfg.ConnectInterval = f.connectInterval },
		"connect-timeout":                 func() { cfg.ConnectTimeout = f.connectTimeout },
		"reconnection-interval":           func() { cfg.ReconnectionInterval = f.reconnectionInterval },
		"reconnection-interval-seconds":   func() { cfg.ReconnectionIntervalSeconds = f.reconnectionIntervalSeconds },
		"expire-client-ids-after":         func() { cfg.ExpireClientIDsAfter = f.expireClientIDsAfter },
		"expire-client-ids-after-seconds": func() { cfg.ExpireClientIDsAfterSeconds = f.expireClientIDsAfterSeconds },
		"no-validation":                   func() { cfg.NoValidation = f.noValidation },
		"chaos-probability":               func() { cfg.ChaosProbability = f.chaosProbability },
		"max-log-entries":                 func() { cfg.MaxLogEntries = f.maxLogEntries },
		"log-level":                       func() { cfg.LogLevel = f.logLevel },
		"log-format":                      func() { cfg.LogFormat = f.logFormat },
	}
	for name, apply := range overlays {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe is the core serve logic called by the cobra command.
func runServe(cmd *cobra.Command, f *serveFlags) error {
	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	server, err := engine.NewServer(cfg, engine.WithLogger(log.With("component", "engine")))
	if err != nil {
		return err
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	printStartupMessage(cfg, server.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// printStartupMessage prints the server startup information.
func printStartupMessage(cfg *config.Config, addr string) {
	fmt.Println("bayeuxd server started")
	fmt.Println()
	fmt.Printf("  Bayeux endpoint: http://%s/cometd\n", addr)
	fmt.Printf("  Control API:     http://%s/control\n", addr)
	fmt.Printf("  Metrics:         http://%s/metrics\n", addr)
	fmt.Println()

	if cfg.ExpireClientIDsAfter > 0 {
		fmt.Printf("Expiring clientIds after %d connects\n", cfg.ExpireClientIDsAfter)
	}
	if cfg.ExpireClientIDsAfterSeconds > 0 {
		fmt.Printf("Expiring clientIds after %d seconds\n", cfg.ExpireClientIDsAfterSeconds)
	}
	if cfg.ChaosProbability > 0 {
		fmt.Printf("Chaos injection enabled (probability %.2f)\n", cfg.ChaosProbability)
	}
	if cfg.NoValidation {
		fmt.Println("Request validation disabled")
	}

	fmt.Println("Press Ctrl+C to stop")
}
