// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.10.19
//

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	m "github.com/mkhts/geo2rdr"
)

func main() {

	p := m.NewPrinter(os.Stderr, 0)

	// Parse command line arguments
	args, err := parseArgs(p)
	if err != nil {
		p.PrintE(err)
		flag.Usage()
		os.Exit(1)
	}
	p.Level = args.dbg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Run the main application
	if err := runApplication(ctx, p, args); err != nil {
		p.PrintE(err)
		os.Exit(1)
	}
}

// Main application processing
func runApplication(ctx context.Context, p *m.Printer, args cmdOpt) error {

	cfg, err := m.LoadRunConfig(args.cfgFn)
	if err != nil {
		return fmt.Errorf("failed to load run config: %w", err)
	}
	applyOverrides(cfg, args)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var plotter *m.PlotObserver
	observers := m.MultiObserver{m.PrintObserver{P: p}}
	if cfg.Output.Plot {
		plotter = m.NewPlotObserver()
		observers = append(observers, plotter)
	}

	g, err := cfg.Build(m.WithObserver(observers))
	if err != nil {
		return err
	}
	if p.Level >= 2 {
		p.PrintA("--- radar grid ---\n")
		grid := g.RadarGrid()
		p.PrintA("%s\n", grid.String())
	}

	gc := cfg.Processing.Geo2rdr

	// Single position only
	if args.set["p"] {
		line, sample, rslt, err := g.Point(args.llh, gc.AzimuthShift, gc.RangeShift)
		if errors.Is(err, m.ErrNonConvergence) {
			p.PrintE(err)
		} else if err != nil {
			return err
		}
		p.PrintA("%s -> line %.6f sample %.6f (t=%.9f, r=%.3f, %d iterations)\n",
			args.llh.String(), line, sample, rslt.AzimuthTime, rslt.SlantRange, rslt.Iterations)
		return nil
	}

	// Load input files
	topo, err := m.OpenFileRaster(cfg.Input.TopoRaster, false)
	if err != nil {
		return fmt.Errorf("failed to open topo raster: %w", err)
	}
	defer topo.Close()

	summary, err := g.RunToDir(ctx, topo, cfg.Output.Dir, gc.AzimuthShift, gc.RangeShift)
	if err != nil {
		return fmt.Errorf("geo2rdr failed: %w", err)
	}

	if plotter != nil {
		if err := plotter.Save(cfg.Output.Dir); err != nil {
			return fmt.Errorf("failed to save plots: %w", err)
		}
	}

	p.PrintAIf(p.Level == 0, "converged %d of %d (%.2f%%)\n", summary.Converged, summary.Total, 100*summary.Ratio())
	return nil
}

// Command line values overriding the run config, applied only when the flag is given
func applyOverrides(cfg *m.RunConfig, args cmdOpt) {
	g := &cfg.Processing.Geo2rdr
	for name := range args.set {
		switch name {
		case "t":
			g.Threshold = &args.threshold
		case "i":
			g.MaxIter = &args.numiter
		case "n":
			g.LinesPerBlock = &args.linesPerBlock
		case "j":
			g.Workers = &args.workers
		case "az":
			g.AzimuthShift = args.azshift
		case "rg":
			g.RangeShift = args.rgshift
		case "o":
			cfg.Output.Dir = args.outDir
		case "plot":
			cfg.Output.Plot = args.plot
		}
	}
}

type cmdOpt struct {
	cfgFn         string
	outDir        string
	threshold     float64
	numiter       int
	linesPerBlock int
	workers       int
	azshift       float64
	rgshift       float64
	plot          bool
	llh           m.PosLLH
	dbg           int
	set           map[string]bool
}

func parseArgs(p *m.Printer) (a cmdOpt, err error) {
	flag.Usage = func() {
		p.PrintA(`
[Usage]
	%s [Options] run.yml

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.StringVar(&a.outDir, "o", "", "Output directory of azimuth.off and range.off. Overrides output.dir of the run config.")
	flag.Float64Var(&a.threshold, "t", m.DefaultThreshold, "Convergence threshold on the azimuth time step [s]")
	flag.IntVar(&a.numiter, "i", m.DefaultMaxIter, "Maximum number of Newton iterations per point")
	flag.IntVar(&a.linesPerBlock, "n", m.DefaultLinesPerBlock, "Number of topo lines read and written per block")
	flag.IntVar(&a.workers, "j", 0, "Number of goroutines per block. 0(GOMAXPROCS), 1(sequential)")
	flag.Float64Var(&a.azshift, "az", 0, "Constant azimuth shift [lines]")
	flag.Float64Var(&a.rgshift, "rg", 0, "Constant range shift [pixels]")
	flag.BoolVar(&a.plot, "plot", false, "Save convergence and offset plots (PNG) in the output directory")
	flag.Var(&a.llh, "p", "Invert a single position \"lat lon hei\" [deg deg m] instead of the topo raster")
	flag.IntVar(&a.dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(summary), 2(per block), 3(more detailed)")
	flag.Parse()
	if flag.NArg() != 1 {
		return a, fmt.Errorf("too less or many arguments")
	}
	a.cfgFn = flag.Arg(0)
	a.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { a.set[f.Name] = true })
	return
}
