package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/vpsim/monitoring"
	"github.com/sarchlab/vpsim/platform"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/simulation"
	"github.com/sarchlab/vpsim/tracing"
)

type progressReporter interface {
	Total() uint64
	AttachProgress(bar *monitoring.ProgressBar)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a platform.",
	Long: "`run -c platform.yaml` builds the platform and runs it until " +
		"nothing is left to simulate.",
	Run: func(cmd *cobra.Command, _ []string) {
		status, err := runPlatform(cmd)
		if err != nil {
			log.Printf("Error: %v", err)
			atexit.Exit(1)
		}

		atexit.Exit(status)
	},
}

func init() {
	addRunFlags(runCmd)
	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "platform description file")
	cmd.Flags().Bool("no-monitor", false, "disable the web monitor")
	cmd.Flags().Int("monitor-port", 0,
		"port of the web monitor, env VPSIM_MONITOR_PORT")
	cmd.Flags().String("monitor-assets", "",
		"serve the monitor pages from a directory, env VPSIM_MONITOR_ASSETS")
	cmd.Flags().Bool("open", false, "open the web monitor in a browser")
	cmd.Flags().Duration("timeout", 0,
		"wall-clock limit of the run, env VPSIM_TIMEOUT")
	cmd.Flags().String("record", "",
		"record the run into a SQLite file, env VPSIM_RECORD")
	cmd.Flags().Bool("log-activations", false,
		"print every clock domain activation")
	cmd.Flags().Bool("stats", false,
		"print activation and event counts per clock domain")
}

type runOptions struct {
	configPath     string
	noMonitor      bool
	monitorPort    int
	monitorAssets  string
	open           bool
	timeout        time.Duration
	recordPath     string
	logActivations bool
	stats          bool
}

func parseRunOptions(cmd *cobra.Command) (runOptions, error) {
	flags := cmd.Flags()
	o := runOptions{}

	o.configPath, _ = flags.GetString("config")
	o.noMonitor, _ = flags.GetBool("no-monitor")
	o.monitorPort, _ = flags.GetInt("monitor-port")
	o.monitorAssets, _ = flags.GetString("monitor-assets")
	o.open, _ = flags.GetBool("open")
	o.timeout, _ = flags.GetDuration("timeout")
	o.recordPath, _ = flags.GetString("record")
	o.logActivations, _ = flags.GetBool("log-activations")
	o.stats, _ = flags.GetBool("stats")

	if !flags.Changed("monitor-port") {
		if v := os.Getenv("VPSIM_MONITOR_PORT"); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return o, errors.Wrap(err, "VPSIM_MONITOR_PORT")
			}
			o.monitorPort = port
		}
	}

	if !flags.Changed("timeout") {
		if v := os.Getenv("VPSIM_TIMEOUT"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return o, errors.Wrap(err, "VPSIM_TIMEOUT")
			}
			o.timeout = d
		}
	}

	if !flags.Changed("monitor-assets") {
		o.monitorAssets = os.Getenv("VPSIM_MONITOR_ASSETS")
	}

	if !flags.Changed("record") {
		o.recordPath = os.Getenv("VPSIM_RECORD")
	}

	return o, nil
}

func (o runOptions) simulationBuilder(cfg *platform.Config) simulation.Builder {
	b := cfg.Apply(simulation.MakeBuilder())

	if o.noMonitor {
		b = b.WithoutMonitoring()
	} else {
		if o.monitorPort > 0 {
			b = b.WithMonitorPort(o.monitorPort)
		}
		if o.monitorAssets != "" {
			b = b.WithMonitorAssets(o.monitorAssets)
		}
	}

	if o.recordPath != "" {
		b = b.WithRecording(o.recordPath)
	}

	if o.logActivations {
		b = b.WithActivationLog(log.New(os.Stdout, "", 0))
	}

	return b
}

func runPlatform(cmd *cobra.Command) (int, error) {
	o, err := parseRunOptions(cmd)
	if err != nil {
		return 1, err
	}

	cfg, err := platform.Load(o.configPath)
	if err != nil {
		return 1, err
	}

	s, err := o.simulationBuilder(cfg).Build()
	if err != nil {
		return 1, err
	}

	if err := platform.Build(cfg, s, NewRegistry()); err != nil {
		return 1, err
	}

	if mon := s.GetMonitor(); mon != nil {
		attachProgressBars(s, mon)

		if o.open {
			if err := mon.OpenInBrowser(); err != nil {
				log.Printf("Warning: %v", err)
			}
		}
	}

	var counter *tracing.ActivityCounter
	if o.stats {
		counter = attachCounter(s)
	}

	ctx := context.Background()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.Run(ctx)
	if err != nil {
		return 1, err
	}

	engine := s.GetEngine()
	fmt.Printf("%s: %s at %s after %s\n",
		cfg.Name, result, engine.CurrentTime(), time.Since(start))

	if counter != nil {
		printStats(counter)
	}

	if err := s.Terminate(); err != nil {
		return 1, err
	}

	return exitStatus(result, engine), nil
}

func attachProgressBars(s *simulation.Simulation, mon *monitoring.Monitor) {
	for _, c := range s.Components() {
		if r, ok := c.(progressReporter); ok {
			r.AttachProgress(mon.CreateProgressBar(c.Name(), r.Total()))
		}
	}
}

func attachCounter(s *simulation.Simulation) *tracing.ActivityCounter {
	counter := tracing.NewActivityCounter()

	s.GetEngine().AcceptHook(counter)
	for _, clk := range s.Clocks() {
		clk.AcceptHook(counter)
	}

	return counter
}

func printStats(counter *tracing.ActivityCounter) {
	fmt.Printf("%-24s %12s %12s\n", "domain", "activations", "events")

	for _, name := range counter.Names() {
		fmt.Printf("%-24s %12d %12d\n",
			name, counter.Activations(name), counter.Events(name))
	}
}

func exitStatus(result timing.RunResult, engine *timing.Engine) int {
	switch result {
	case timing.RunStopped:
		return engine.RunStatus()
	case timing.RunKilled:
		return 2
	default:
		return 0
	}
}
