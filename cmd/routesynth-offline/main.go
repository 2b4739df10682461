package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/signalsfoundry/assumed-cables/core"
	"github.com/signalsfoundry/assumed-cables/internal/config"
	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/scenario"
	"github.com/signalsfoundry/assumed-cables/internal/store"
	"github.com/signalsfoundry/assumed-cables/timectrl"
)

type options struct {
	DatasetPath string
	ConfigPath  string
	Variant     string
	GeoJSONOut  string
	CSVOut      string
	Delimiter   string
	SupplyMode  string
	Serial      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.DatasetPath, "dataset", "", "JSON dataset to rebuild from (required)")
	flag.StringVar(&opts.ConfigPath, "config", os.Getenv("ROUTESYNTH_CONFIG"), "path to a YAML config file")
	flag.StringVar(&opts.Variant, "variant", "1", "variant written by -geojson and -csv")
	flag.StringVar(&opts.GeoJSONOut, "geojson", "", "write the map layer of -variant to this file")
	flag.StringVar(&opts.CSVOut, "csv", "", "write the delimited export of -variant to this file")
	flag.StringVar(&opts.Delimiter, "delimiter", ";", "export delimiter (first character is used)")
	flag.StringVar(&opts.SupplyMode, "supply-mode", "", "override owner supply mode: consume or read")
	flag.BoolVar(&opts.Serial, "serial", false, "synthesise variants one at a time")
	flag.Parse()

	if opts.DatasetPath == "" {
		fmt.Fprintln(os.Stderr, "routesynth-offline: -dataset is required")
		flag.Usage()
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "routesynth-offline: %v\n", err)
		os.Exit(1)
	}
}

// run rebuilds every configured variant from the dataset into a memory
// store, prints a summary per variant and writes the requested outputs.
func run(ctx context.Context, opts options, out io.Writer, log logging.Logger) error {
	variant, err := scenario.ParseVariantStrict(opts.Variant)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if cfg, err = cfg.ApplyEnv(); err != nil {
		return err
	}
	if opts.SupplyMode != "" {
		cfg.Owner.SupplyMode = opts.SupplyMode
	}
	if opts.Serial {
		cfg.ParallelVariants = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ownerPolicy, err := cfg.OwnerPolicy()
	if err != nil {
		return err
	}

	ds, err := store.LoadDatasetFile(opts.DatasetPath)
	if err != nil {
		return err
	}
	st := store.NewMemory(ds)
	defer st.Close()

	rebuilder, err := scenario.NewRebuilder(st, log,
		scenario.WithSynthesisPolicy(cfg.SynthesisPolicy()),
		scenario.WithOwnerPolicy(ownerPolicy),
		scenario.WithVariants(cfg.Variants...),
		scenario.WithParallelVariants(cfg.ParallelVariants),
	)
	if err != nil {
		return err
	}

	res, err := rebuilder.Rebuild(ctx, scenario.Request{})
	if err != nil {
		return err
	}

	rejected := core.BuildNetwork(ds).Rejected
	fmt.Fprintf(out, "%s (%d directions, %d rejected)\n", res.Message, len(ds.Directions), len(rejected))
	for _, r := range rejected {
		log.Debug(ctx, "direction rejected", logging.Int64("direction_id", r.DirectionID), logging.Err(r.Err))
	}
	if res.BuildID != "" {
		fmt.Fprintf(out, "build %s\n", res.BuildID)
	}
	for _, v := range res.Variants {
		s := v.Stats
		fmt.Fprintf(out, "variant %d %-22s routes=%d owners=%d unknown=%d length_m=%.2f edge_units=%d/%d\n",
			v.VariantNo, v.Strategy, s.RoutesTotal, s.OwnersAssigned, s.OwnersUnknown,
			s.TotalLengthM, s.TotalEdgeUnits, s.TotalUnaccounted)
	}

	reader := scenario.NewReader(st, log, timectrl.System{})
	if opts.GeoJSONOut != "" {
		if err := writeGeoJSON(ctx, reader, variant, opts.GeoJSONOut); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote map layer of variant %d to %s\n", variant, opts.GeoJSONOut)
	}
	if opts.CSVOut != "" {
		if err := writeCSV(ctx, reader, variant, opts.CSVOut, scenario.ParseDelimiter(opts.Delimiter)); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote export of variant %d to %s\n", variant, opts.CSVOut)
	}
	return nil
}

func writeGeoJSON(ctx context.Context, reader *scenario.Reader, variant int, path string) error {
	fc, err := reader.MapLayer(ctx, variant)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode map layer: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCSV(ctx context.Context, reader *scenario.Reader, variant int, path string, delimiter rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := reader.Export(ctx, f, variant, delimiter); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
