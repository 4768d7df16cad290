package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appservices "github.com/carlosrabelo/stbmon/core/application/services"
	"github.com/carlosrabelo/stbmon/core/domain/entities"
	"github.com/carlosrabelo/stbmon/core/infrastructure/config"
	"github.com/carlosrabelo/stbmon/core/infrastructure/httpapi"
	"github.com/carlosrabelo/stbmon/core/infrastructure/metrics"
	"github.com/carlosrabelo/stbmon/core/infrastructure/mqtt"
	"github.com/carlosrabelo/stbmon/core/infrastructure/snmptrap"
	"github.com/carlosrabelo/stbmon/core/infrastructure/transport"
	"github.com/carlosrabelo/stbmon/core/platform"
)

// Global flags
var (
	configFlag  string
	verboseFlag int
)

// Command-specific flags
var (
	pollTargetFlag   string
	pollCountFlag    int
	pollIntervalFlag time.Duration
	pollJSONFlag     bool
	rebootTargetFlag string
	versionShort     bool
)

var rootCmd = &cobra.Command{
	Use:   "stbmon",
	Short: "Monitor Amino set-top boxes over their shell",
	Long: `stbmon logs into set-top boxes over Telnet or SSH, collects CPU, memory,
process and network statistics, and can reboot them remotely.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verboseFlag < 0 || verboseFlag > 3 {
			return fmt.Errorf("--verbose must be 0, 1, 2, or 3")
		}
		return nil
	},
}

// pollCmd polls one device and prints its statistics
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll a device once and print its statistics",
	Long: `Log into the device, run the diagnostic commands and print the snapshot.

Network rates need two samples, so use --count to poll more than once.

Examples:
  stbmon poll --target lobby
  stbmon poll --target 10.231.64.92 --count 3 --interval 5s
  stbmon poll --target lobby --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pollCommand(cmd.OutOrStdout(), cmd.ErrOrStderr(), pollTargetFlag, pollCountFlag, pollIntervalFlag, pollJSONFlag)
	},
}

// rebootCmd restarts one device
var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Reboot a device",
	Long: `Send the reboot command to the device. The session is closed afterwards
because the device drops it while restarting.

Examples:
  stbmon reboot --target lobby`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rebootCommand(cmd.OutOrStdout(), cmd.ErrOrStderr(), rebootTargetFlag)
	},
}

// serveCmd runs the monitoring daemon
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll every configured device and serve the HTTP API",
	Long: `Poll every device on its interval, publish snapshots to MQTT when a broker
is configured, poll immediately on SNMP traps when a trap listener is
configured, and serve statistics, controls and Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serveCommand(ctx, cmd.ErrOrStderr())
	},
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			cmd.Println(version)
			return
		}
		cmd.Printf("stbmon %s\n", version)
		cmd.Printf("built: %s\n", buildTime)
		cmd.Printf("go: %s\n", runtime.Version())
		cmd.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", defaultConfigFile, "YAML configuration file")
	rootCmd.PersistentFlags().IntVar(&verboseFlag, "verbose", 0, "Verbosity level: 0=none, 1=debug logs, 2=raw device output, 3=debug+raw output")

	pollCmd.Flags().StringVar(&pollTargetFlag, "target", "", "Device name or target (must match the YAML, required)")
	pollCmd.Flags().IntVar(&pollCountFlag, "count", 1, "Number of polls")
	pollCmd.Flags().DurationVar(&pollIntervalFlag, "interval", 5*time.Second, "Time between polls when --count is above 1")
	pollCmd.Flags().BoolVar(&pollJSONFlag, "json", false, "Print poll records as JSON")
	_ = pollCmd.MarkFlagRequired("target")

	rebootCmd.Flags().StringVar(&rebootTargetFlag, "target", "", "Device name or target (must match the YAML, required)")
	_ = rebootCmd.MarkFlagRequired("target")

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")

	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger maps the verbosity level to a text handler on w
func newLogger(w io.Writer, verbosity int) *slog.Logger {
	level := slog.LevelInfo
	if verbosity > 0 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadConfig(logger *slog.Logger, target string) (*config.Config, error) {
	configPath, err := resolveConfigPath(configFlag, configSearchPaths(), logger)
	if err != nil {
		return nil, err
	}
	return config.Load(configPath, target, verboseFlag)
}

// newMonitor wires the transport session, driver and monitor for one device
func newMonitor(dev entities.DeviceConfig, logger *slog.Logger, sinks ...appservices.SnapshotSink) (*appservices.MonitorService, error) {
	driver, err := platform.Get(dev.Platform)
	if err != nil {
		return nil, err
	}
	client := transport.Get(dev, driver.Dialect(), logger)
	return appservices.NewMonitorService(dev, client, driver, logger, sinks...), nil
}

func lookupDevice(cfg *config.Config, target string) (entities.DeviceConfig, error) {
	dev, ok := cfg.Device(target)
	if !ok {
		return entities.DeviceConfig{}, fmt.Errorf("target %s not registered in the YAML configuration", target)
	}
	return dev, nil
}

func pollCommand(out, errOut io.Writer, target string, count int, interval time.Duration, asJSON bool) error {
	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	logger := newLogger(errOut, verboseFlag)
	slog.SetDefault(logger)

	cfg, err := loadConfig(logger, target)
	if err != nil {
		return err
	}
	dev, err := lookupDevice(cfg, target)
	if err != nil {
		return err
	}
	defer transport.CloseAll()

	monitor, err := newMonitor(dev, logger)
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		record, err := monitor.Poll(appservices.TriggerCLI)
		if err != nil {
			return err
		}
		if asJSON {
			if err := json.NewEncoder(out).Encode(record); err != nil {
				return err
			}
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := writeSnapshot(out, record.Snapshot); err != nil {
			return err
		}
	}
	return nil
}

func rebootCommand(out, errOut io.Writer, target string) error {
	logger := newLogger(errOut, verboseFlag)
	slog.SetDefault(logger)

	cfg, err := loadConfig(logger, target)
	if err != nil {
		return err
	}
	dev, err := lookupDevice(cfg, target)
	if err != nil {
		return err
	}
	defer transport.CloseAll()

	monitor, err := newMonitor(dev, logger)
	if err != nil {
		return err
	}
	if err := monitor.Control([]entities.ControlRequest{{Property: entities.RebootProperty}}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Reboot sent to %s (%s)\n", dev.Name, dev.Target)
	return nil
}

func serveCommand(ctx context.Context, errOut io.Writer) error {
	logger := newLogger(errOut, verboseFlag)
	slog.SetDefault(logger)

	cfg, err := loadConfig(logger, "")
	if err != nil {
		return err
	}
	defer transport.CloseAll()

	collector := metrics.NewCollector()
	sinks := []appservices.SnapshotSink{collector}
	if cfg.MQTT.Enabled() {
		publisher := mqtt.NewPublisher(cfg.MQTT, logger)
		if err := publisher.Connect(); err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	monitors := make([]*appservices.MonitorService, 0, len(cfg.Devices))
	for _, dev := range cfg.Devices {
		monitor, err := newMonitor(dev, logger, sinks...)
		if err != nil {
			return err
		}
		monitors = append(monitors, monitor)
	}
	registry := appservices.NewRegistry(monitors...)
	defer registry.Close()

	server := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           httpapi.NewRouter(registry, collector.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return registry.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("serving HTTP API", "address", cfg.HTTP.Listen, "devices", len(monitors))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.SNMP.Enabled() {
		listener := snmptrap.NewListener(cfg.SNMP, trapResolver(registry), func(device string) {
			if monitor, ok := registry.Get(device); ok {
				_, _ = monitor.Poll(appservices.TriggerTrap)
			}
		}, logger)
		g.Go(func() error {
			return listener.ListenAndServe(ctx)
		})
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}

// trapResolver routes a trap source address to the monitored device at it
func trapResolver(registry *appservices.Registry) snmptrap.ResolveFunc {
	return func(source string) (entities.DeviceConfig, bool) {
		monitor, ok := registry.ByTarget(source)
		if !ok {
			return entities.DeviceConfig{}, false
		}
		return monitor.Config(), true
	}
}
