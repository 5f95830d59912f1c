// Command raydata converts a simulation run directory into the ray_data.json
// document read by the web visualiser.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/raydata/internal/catalog"
	"github.com/banshee-data/raydata/internal/config"
	"github.com/banshee-data/raydata/internal/fsutil"
	"github.com/banshee-data/raydata/internal/monitoring"
	"github.com/banshee-data/raydata/internal/preview"
	"github.com/banshee-data/raydata/internal/raydata"
	"github.com/banshee-data/raydata/internal/version"
)

// errUsage marks invalid invocations; usage has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// parseFlags builds the export configuration from args. Flags set explicitly
// on the command line override values from -config.
func parseFlags(args []string, stderr io.Writer) (*config.ExportConfig, bool, error) {
	fs := flag.NewFlagSet("raydata", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		flags       config.ExportConfig
		runDir      = fs.String("run-dir", "", "Run directory holding medium/ and batches/ (required)")
		maxRays     = fs.Int("max-rays", raydata.DefaultMaxRays, "Maximum number of rays to export")
		outputDir   = fs.String("output-dir", ".", "Output directory for "+raydata.DefaultOutputName)
		output      = fs.String("output", "", "Explicit output file (overrides -output-dir)")
		mediumOut   = fs.Bool("medium-output", false, "Also write "+raydata.MediumOutputName+" next to the output")
		pngPath     = fs.String("png", "", "Write a PNG preview to this path")
		htmlPath    = fs.String("html", "", "Write an HTML preview to this path")
		catalogPath = fs.String("catalog", "", "Record the export in this SQLite catalog")
		quiet       = fs.Bool("quiet", false, "Suppress progress messages")
		configPath  = fs.String("config", "", "JSON file with default settings")
		showVersion = fs.Bool("version", false, "Print version and exit")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: raydata -run-dir DIR [options]\n\n")
		fmt.Fprintf(stderr, "Converts ray batches, medium and parameters of a simulation run into JSON for the web visualiser.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  raydata -run-dir ./runs/500_10000_42 -max-rays 10000\n")
		fmt.Fprintf(stderr, "  raydata -run-dir ./runs/500_10000_42 -output-dir ./web -medium-output -html ./web/preview.html\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, false, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	if *showVersion {
		return nil, true, nil
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "run-dir":
			flags.RunDir = runDir
		case "max-rays":
			flags.MaxRays = maxRays
		case "output-dir":
			flags.OutputDir = outputDir
		case "output":
			flags.Output = output
		case "medium-output":
			flags.MediumOutput = mediumOut
		case "png":
			flags.PNG = pngPath
		case "html":
			flags.HTML = htmlPath
		case "catalog":
			flags.Catalog = catalogPath
		case "quiet":
			flags.Quiet = quiet
		}
	})

	cfg := &config.ExportConfig{}
	if *configPath != "" {
		loaded, err := config.LoadExportConfig(*configPath)
		if err != nil {
			return nil, false, err
		}
		cfg = loaded
	}
	cfg.Merge(&flags)

	if err := cfg.ValidateForRun(); err != nil {
		fs.Usage()
		return nil, false, fmt.Errorf("%w: %v", errUsage, err)
	}
	return cfg, false, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, versionOnly, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if versionOnly {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	if cfg.GetQuiet() {
		monitoring.SetLogger(nil)
	}

	fsys := fsutil.OSFileSystem{}
	exporter := &raydata.Exporter{FS: fsys}
	opts := cfg.Options()

	res, err := exporter.Run(opts)
	if err != nil {
		return err
	}

	// Side outputs run after the document is safely on disk; a failure is
	// reported but does not remove it.
	var errs []error
	if path := cfg.GetPNG(); path != "" {
		if err := preview.WritePNG(fsys, res.Document, path); err != nil {
			errs = append(errs, fmt.Errorf("png preview: %w", err))
		} else {
			monitoring.Logf("PNG preview saved to: %s", path)
		}
	}
	if path := cfg.GetHTML(); path != "" {
		if err := preview.WriteHTML(fsys, res.Document, path); err != nil {
			errs = append(errs, fmt.Errorf("html preview: %w", err))
		} else {
			monitoring.Logf("HTML preview saved to: %s", path)
		}
	}
	if path := cfg.GetCatalog(); path != "" {
		if err := recordExport(path, opts, res); err != nil {
			errs = append(errs, fmt.Errorf("catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}

func recordExport(path string, opts raydata.Options, res *raydata.Result) error {
	c, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.RecordExport(catalog.RecordFromResult(opts, res, version.Version))
	if err != nil {
		return err
	}
	monitoring.Logf("Recorded export %s in %s", id, path)
	return nil
}
