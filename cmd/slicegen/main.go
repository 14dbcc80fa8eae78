// slicegen drives the tool-path emission core end to end against a
// built-in square-perimeter toolpath: it loads a printer profile, runs
// one Planner per synthetic layer, drains each into a shared Emitter,
// and optionally publishes per-layer progress over a WebSocket.
//
// It does not slice an STL file or generate infill -- the per-layer
// geometry is a fixed square, purely so the wiring between profile,
// planner, and emitter has something concrete to push through it.
//
// Usage:
//
//	slicegen --profile printer.yaml --out part.gcode --layers 50
//
// Options:
//
//	--profile string        Printer profile YAML file (required)
//	--out string             Output G-code file (default: stdout)
//	--layers int             Number of synthetic layers to emit (default 10)
//	--progress-addr string   If set, serve live progress at this address
//	--log-file string        If set, also persist logs to this rotating file
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"fdmtoolpath/internal/iosink"
	"fdmtoolpath/internal/profile"
	"fdmtoolpath/internal/progress"
	"fdmtoolpath/pkg/gcode"
	"fdmtoolpath/pkg/geom"
	"fdmtoolpath/pkg/log"
	"fdmtoolpath/pkg/pathconfig"
)

var logger = log.GetLogger("slicegen")

const (
	squareSideMM     = 40.0
	layerThicknessMM = 0.2
	wallSpeedMMps    = 40
	minLayerTimeSecs = 5.0
	minimalSpeedMMps = 10
)

func main() {
	profilePath := pflag.String("profile", "", "Printer profile YAML file (required)")
	outPath := pflag.String("out", "", "Output G-code file (default: stdout)")
	layers := pflag.Int("layers", 10, "Number of synthetic layers to emit")
	progressAddr := pflag.String("progress-addr", "", "If set, serve live progress at this address")
	logFilePath := pflag.String("log-file", "", "If set, also persist logs to this rotating file")
	pflag.Parse()

	if *profilePath == "" {
		fmt.Fprintln(os.Stderr, "slicegen: --profile is required")
		pflag.Usage()
		os.Exit(1)
	}

	if *logFilePath != "" {
		fileLogger, writer, err := log.NewConsoleAndFileLogger("slicegen", log.RotationConfig{
			Filename:   *logFilePath,
			MaxSize:    10,
			MaxBackups: 5,
			Compress:   true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "slicegen: opening log file: %v\n", err)
			os.Exit(1)
		}
		defer writer.Close()
		logger = fileLogger
	}

	if err := run(*profilePath, *outPath, *layers, *progressAddr); err != nil {
		logger.WithError(err).Error("slicegen failed")
		os.Exit(1)
	}
}

func run(profilePath, outPath string, layers int, progressAddr string) error {
	prof, err := profile.Load(profilePath)
	if err != nil {
		return err
	}

	e := gcode.New(gcode.NewLoggerAdapter(logger))

	var sink *iosink.DurableFile
	if outPath != "" {
		sink, err = iosink.Open(outPath)
		if err != nil {
			return err
		}
		e.SetSink(sink.File())
	}

	if err := prof.Apply(e); err != nil {
		return err
	}

	var broadcaster *progress.Broadcaster
	if progressAddr != "" {
		broadcaster = progress.New()
		mux := http.NewServeMux()
		mux.Handle("/progress", broadcaster.Handler())
		go func() {
			if err := http.ListenAndServe(progressAddr, mux); err != nil {
				logger.WithError(err).Error("progress server stopped")
			}
		}()
		logger.WithField("addr", progressAddr).Info("progress feed listening")
	}

	wallCfg := pathconfig.New(wallSpeedMMps, 400, "WALL-OUTER")

	start := elapsedClock{}
	for layer := 0; layer < layers; layer++ {
		e.SetCurrentLayer(layer)
		e.SetTotalLayer(layers)
		e.SetZ(int32(float64(layer+1) * layerThicknessMM * 1000))

		p := prof.NewPlanner(e)
		p.AddPolygon(squareRing(), 0, wallCfg)
		p.ForceMinimalLayerTime(minLayerTimeSecs, minimalSpeedMMps)

		if err := p.WriteGCode(true, geom.MM2INT(layerThicknessMM)); err != nil {
			return err
		}

		logger.WithFields(log.Fields{
			"layer":      layer + 1,
			"of":         layers,
			"print_time": e.TotalPrintTimeSeconds(),
		}).Debug("layer written")

		if broadcaster != nil {
			elapsed := start.tick()
			broadcaster.Publish(progress.Snapshot{
				Layer:          layer + 1,
				TotalLayers:    layers,
				PercentDone:    100 * float64(layer+1) / float64(layers),
				ElapsedSeconds: elapsed,
				EstTotalSecs:   e.TotalPrintTimeSeconds(),
			})
		}
	}

	if err := e.Finalize(int32(float64(layers)*layerThicknessMM*1000), prof.EffectiveTravelSpeedMMps(), prof.EndCode); err != nil {
		return err
	}

	if sink != nil {
		return sink.Close()
	}
	return nil
}

// squareRing builds the one synthetic per-layer perimeter this demo
// drains through the Planner: a 40mm square centred on the origin.
func squareRing() []geom.Point {
	half := geom.MM2INT(squareSideMM / 2)
	return []geom.Point{
		geom.Pt(-half, -half),
		geom.Pt(half, -half),
		geom.Pt(half, half),
		geom.Pt(-half, half),
	}
}

// elapsedClock tracks wall-clock seconds since the first tick, used only
// to label progress snapshots -- never consulted by the core itself.
type elapsedClock struct {
	start time.Time
}

func (c *elapsedClock) tick() float64 {
	if c.start.IsZero() {
		c.start = time.Now()
	}
	return time.Since(c.start).Seconds()
}
