package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	control "quad-stabilizer-core/closed_loop/attitude_control"
	"quad-stabilizer-core/utils"
)

func main() {
	var (
		mode      = flag.String("mode", "sim", "can|sim")
		iface     = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath   = flag.String("map", "config/can/can_map.csv", "Path to can_map.csv")
		cfgPath   = flag.String("config", "config/controller.yaml", "Controller config YAML (empty for built-in defaults)")
		scenPath  = flag.String("scenario", "", "Scenario JSON file (sim mode defaults to "+defaultScenario+")")
		logLevel  = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		logFile   = flag.String("logfile", "closed_loop.log", "Rotated log file")
		tracePath = flag.String("trace", "", "sim mode: write a CSV trace here")
		plotPath  = flag.String("plot", "", "sim mode: write PNG plots here")
	)
	flag.Parse()

	log, err := utils.NewFileLogger(*logFile, utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	ctrlCfg, err := control.LoadConfig(*cfgPath)
	if err != nil {
		log.Critical("Config failed: %v", err)
		os.Exit(1)
	}
	g := ctrlCfg.Gains
	log.Info("Controller gains: thrust=%.2f offset=%.2f vertical_p=%.2f roll_p=%.1f pitch_p=%.1f",
		g.VerticalThrust, g.VerticalOffset, g.VerticalP, g.RollP, g.PitchP)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "can":
		err = runCAN(ctx, log, ctrlCfg, RunnerConfig{
			Interface:    *iface,
			MapPath:      *mapPath,
			ScenarioPath: *scenPath,
		})
	case "sim":
		err = runSim(ctx, log, ctrlCfg, *scenPath, *tracePath, *plotPath)
	default:
		log.Critical("Unknown mode %q", *mode)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, control.ErrMissingCapability) {
			log.Critical("Startup failed: %v", err)
		} else {
			log.Critical("Run failed: %v", err)
		}
		log.Close()
		os.Exit(1)
	}
}

func runCAN(ctx context.Context, log *utils.Logger, ctrlCfg control.Config, cfg RunnerConfig) error {
	runner, err := NewRunner(ctx, cfg, ctrlCfg, log)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Run(ctx)
}

const defaultScenario = "config/scenarios/hover_30s.json"

func runSim(ctx context.Context, log *utils.Logger, ctrlCfg control.Config, scenPath, tracePath, plotPath string) error {
	if scenPath == "" {
		scenPath = defaultScenario
	}
	scen, err := LoadScenario(scenPath)
	if err != nil {
		return err
	}
	res, err := Simulate(ctx, ctrlCfg, scen, log)
	if err != nil {
		return err
	}
	if tracePath != "" {
		if err := WriteTraceCSV(tracePath, res.Trace); err != nil {
			return err
		}
		log.Info("Trace written to %s (%d samples)", tracePath, len(res.Trace))
	}
	if plotPath != "" {
		if err := SaveTracePlots(plotPath, res.Trace); err != nil {
			return err
		}
		log.Info("Plots written to %s", plotPath)
	}
	return nil
}
