package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sarchlab/coherence/config"
	"github.com/sarchlab/coherence/datarecording"
	"github.com/sarchlab/coherence/hooking"
	"github.com/sarchlab/coherence/monitoring"
	"github.com/sarchlab/coherence/simulation"
)

type options struct {
	traceDir    string
	resultDir   string
	sqlitePath  string
	analysisCSV string
	opLog       string
	monitor     bool
	monitorPort int
	openBrowser bool

	// changed reports whether a flag was set on the command line. Flags
	// that were not set leave the values loaded from the environment.
	changed func(name string) bool
}

func (o options) isChanged(name string) bool {
	return o.changed != nil && o.changed(name)
}

// loadConfig builds the configuration from the defaults, the .env file, the
// flags and the positional arguments, in increasing order of precedence.
func loadConfig(o options, args []string) (config.Config, error) {
	cfg := config.Default()

	err := cfg.LoadEnv(".env")
	if err != nil {
		return cfg, err
	}

	if o.isChanged("trace-dir") {
		cfg.TraceDir = o.traceDir
	}

	if o.isChanged("result-dir") {
		cfg.ResultDir = o.resultDir
	}

	if o.isChanged("sqlite") {
		cfg.SQLitePath = o.sqlitePath
	}

	cfg.AnalysisCSV = o.analysisCSV
	cfg.OperationLog = o.opLog
	cfg.Monitor = o.monitor
	cfg.MonitorPort = o.monitorPort
	cfg.OpenBrowser = o.openBrowser

	err = cfg.ParseArgs(args)
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// simulate performs one run and returns the exit code of the process.
// Configuration errors print the usage and exit successfully without
// simulating.
func simulate(stdout, stderr io.Writer, o options, args []string) int {
	cfg, err := loadConfig(o, args)
	if err != nil {
		fmt.Fprintf(stdout, "ERROR: %v\n", err)
		if errors.Is(err, config.ErrInvalidConfig) {
			fmt.Fprint(stdout, usage)
			return 0
		}

		return 1
	}

	logger := log.New(stderr, "", log.LstdFlags)

	builder := simulation.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logger)

	if cfg.OperationLog != "" {
		opLog := hooking.NewAccessLogger(cfg.OperationLog)

		err = opLog.Init()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		defer opLog.Close()

		builder = builder.WithHook(opLog)
	}

	sim, err := builder.Build()
	if err != nil {
		fmt.Fprintf(stdout, "ERROR: %v\n", err)
		return 1
	}

	if cfg.Monitor {
		monitor, err := startMonitor(sim, cfg, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			_ = monitor.StopServer(ctx)
		}()
	}

	code := 0

	runErr := sim.RunTraces()
	if runErr != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", runErr)
		code = 1
	}

	err = writeResults(stdout, sim, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		code = 1
	}

	return code
}

func startMonitor(
	sim *simulation.Simulation,
	cfg config.Config,
	stderr io.Writer,
) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor().WithPortNumber(cfg.MonitorPort)
	monitor.RegisterRunConfig(&cfg)

	for _, c := range sim.Cores() {
		total, err := cfg.Benchmark.Count(cfg.TraceDir, c.PID())
		if err != nil {
			return nil, err
		}

		bar := monitor.CreateProgressBar(fmt.Sprintf("Core %d", c.PID()), total)
		c.SetProgressFunc(bar.IncrementFinished)
	}

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if cfg.OpenBrowser {
		err = monitor.OpenInBrowser(url)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open browser: %v\n", err)
		}
	}

	return monitor, nil
}

func writeResults(
	stdout io.Writer,
	sim *simulation.Simulation,
	cfg config.Config,
) error {
	summary := sim.Summary()

	path, err := summary.WriteLog(cfg.ResultDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "DONE: The output summary can be found at %s\n", path)

	if cfg.AnalysisCSV != "" {
		err = summary.AppendAnalysis(cfg.AnalysisCSV)
		if err != nil {
			return err
		}
	}

	if cfg.SQLitePath == "" {
		return nil
	}

	recorder, err := datarecording.New(cfg.SQLitePath)
	if err != nil {
		return err
	}

	_, err = summary.Record(recorder)

	return errors.Join(err, recorder.Close())
}
