// movement-times exports the per-movement journey and circuit times of one route as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/circuitgrid/internal/app"
	"github.com/chrissnell/circuitgrid/internal/correlator"
	"github.com/chrissnell/circuitgrid/internal/log"
	"github.com/chrissnell/circuitgrid/internal/movement"
	"github.com/chrissnell/circuitgrid/internal/types"
	"github.com/chrissnell/circuitgrid/pkg/config"
)

func main() {
	var (
		cfgFile   = flag.String("config", "", "Path to the YAML configuration file (optional when -dir is set)")
		uploadDir = flag.String("dir", "", "Directory of CSV source tables; overrides the configured source")
		route     = flag.String("route", "", "Route id to export")
		from      = flag.String("from", "", "Window start (optional)")
		to        = flag.String("to", "", "Window end (optional)")
		output    = flag.String("o", "", "Output file (default: movement_times_<route>.csv, '-' for stdout)")
		debug     = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *route == "" || (*cfgFile == "" && *uploadDir == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -route <id> (-config <config.yaml> | -dir <uploads>) [-from t] [-to t] [-o file]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(log.Options{Debug: *debug}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgData := config.Defaults()
	if *cfgFile != "" {
		var err error
		if cfgData, err = config.NewYAMLProvider(*cfgFile).LoadConfig(); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *uploadDir != "" {
		cfgData.Sources = config.SourcesData{Backend: config.SourceCSV, UploadDir: *uploadDir}
	}

	window, err := parseWindow(*from, *to)
	if err != nil {
		log.Fatalf("%v", err)
	}

	service, closer, err := app.NewService(cfgData, log.GetSugaredLogger())
	if err != nil {
		log.Fatalf("Failed to open source tables: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	res, err := service.MovementTimes(context.Background(), *route, window)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(res.Records) == 0 {
		log.Warnf("no movements found for route %s: %s", *route, res.Route.Message)
	}

	out := os.Stdout
	name := *output
	if name == "" {
		name = "movement_times_" + res.Route.RouteID + ".csv"
	}
	if name != "-" {
		f, err := os.Create(name)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", name, err)
		}
		defer f.Close()
		out = f
	}

	if err := movement.WriteCSV(out, res.Records); err != nil {
		log.Fatalf("Failed to write CSV: %v", err)
	}
	if name != "-" {
		log.Infof("wrote %d movements of route %s to %s", len(res.Records), res.Route.RouteID, name)
	}
}

func parseWindow(from, to string) (types.Window, error) {
	var w types.Window
	var err error
	if from != "" {
		if w.From, err = correlator.ParseTimestamp(from); err != nil {
			return w, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if to != "" {
		if w.To, err = correlator.ParseTimestamp(to); err != nil {
			return w, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return w, fmt.Errorf("window ends at %s before it starts at %s", w.To.Format(time.RFC3339), w.From.Format(time.RFC3339))
	}
	return w, nil
}
