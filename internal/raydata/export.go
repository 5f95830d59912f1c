package raydata

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/raydata/internal/fsutil"
	"github.com/banshee-data/raydata/internal/monitoring"
	"github.com/banshee-data/raydata/internal/security"
	"github.com/banshee-data/raydata/internal/timeutil"
)

// bytesPerMB is the binary unit used when reporting output sizes.
const bytesPerMB = 1024 * 1024

// Options configures one export run.
type Options struct {
	RunDir  string
	MaxRays int

	// OutputDir receives DefaultOutputName unless OutputPath is set.
	OutputDir  string
	OutputPath string

	// MediumOutput also writes MediumOutputName next to the main document.
	MediumOutput bool
}

// ResolveOutputPath returns the document path for these options.
func (o Options) ResolveOutputPath() string {
	if o.OutputPath != "" {
		return o.OutputPath
	}
	dir := o.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, DefaultOutputName)
}

// Result describes a completed export.
type Result struct {
	Document    *Document
	Medium      MediumSummary
	OutputPath  string
	OutputBytes int64
	MediumPath  string

	CompletedAt time.Time
	Elapsed     time.Duration
}

// Exporter assembles run directories into visualiser documents.
type Exporter struct {
	FS    fsutil.FileSystem
	Logf  func(format string, v ...interface{})
	Clock timeutil.Clock
}

// NewExporter returns an Exporter reading from the OS filesystem.
func NewExporter() *Exporter {
	return &Exporter{FS: fsutil.OSFileSystem{}}
}

func (e *Exporter) fs() fsutil.FileSystem {
	if e.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return e.FS
}

func (e *Exporter) clock() timeutil.Clock {
	if e.Clock == nil {
		return timeutil.RealClock{}
	}
	return e.Clock
}

func (e *Exporter) logf(format string, v ...interface{}) {
	if e.Logf != nil {
		e.Logf(format, v...)
		return
	}
	monitoring.Logf(format, v...)
}

// Build reads every input of runDir and assembles the document. Nothing is
// written.
func (e *Exporter) Build(runDir string, maxRays int) (*Document, error) {
	if maxRays < 0 {
		return nil, fmt.Errorf("max rays must be non-negative, got %d", maxRays)
	}
	fsys := e.fs()

	params, err := ReadParameters(fsys, runDir)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	e.logf("Read %d parameters", params.Len())

	medium, err := ReadMedium(fsys, runDir)
	if err != nil {
		return nil, fmt.Errorf("read medium: %w", err)
	}
	if medium == nil {
		e.logf("No medium data in %s", filepath.Join(runDir, MediumDir))
	}

	e.logf("Processing rays (max: %d)...", maxRays)
	rays, err := LoadRays(fsys, runDir, maxRays)
	if err != nil {
		return nil, fmt.Errorf("load rays: %w", err)
	}
	e.logf("Processed %d rays from %d of %d archives (%d empty skipped)",
		len(rays.Rays), rays.ArchivesOpened, rays.ArchivesFound, rays.EmptySkipped)

	st := ComputeEndpointStats(rays.Endpoints)

	doc := &Document{
		Parameters:  params,
		Medium:      medium,
		Rays:        rays.Rays,
		Endpoints:   rays.Endpoints,
		Projections: st.Projections,
		MeanRadius:  st.MeanRadius,
	}
	doc.normalize()
	return doc, nil
}

// Encode serialises the document as indented JSON.
func Encode(doc *Document) ([]byte, error) {
	doc.normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write serialises doc fully before touching path, then replaces path
// atomically. It returns the number of bytes written.
func (e *Exporter) Write(doc *Document, path string) (int64, error) {
	data, err := Encode(doc)
	if err != nil {
		return 0, fmt.Errorf("encode document: %w", err)
	}
	if err := fsutil.WriteFileAtomic(e.fs(), path, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// WriteMedium writes the companion {parameters, medium} document.
func (e *Exporter) WriteMedium(doc *Document, path string) (int64, error) {
	doc.normalize()
	data, err := json.MarshalIndent(MediumDocument{Parameters: doc.Parameters, Medium: doc.Medium}, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode medium document: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(e.fs(), path, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Run builds the document for opts.RunDir and writes it to the resolved
// output path. Outputs that would land inside the run's medium or batches
// directory are refused before anything is read.
func (e *Exporter) Run(opts Options) (*Result, error) {
	start := e.clock().Now()

	out := opts.ResolveOutputPath()
	protected := []string{
		filepath.Join(opts.RunDir, MediumDir),
		filepath.Join(opts.RunDir, BatchesDir),
	}
	if err := security.ValidateOutputPath(out, protected...); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	doc, err := e.Build(opts.RunDir, opts.MaxRays)
	if err != nil {
		return nil, err
	}

	summary := SummarizeMedium(doc.Medium)
	if summary.Count > 0 {
		e.logf("Medium: %d particles, radius mean %.4f (min %.4f, max %.4f), mean n %.4f",
			summary.Count, summary.MeanRadius, summary.MinRadius, summary.MaxRadius, summary.MeanIndex)
	}
	e.logf("Mean endpoint radius: %.4f", doc.MeanRadius)

	if err := e.fs().MkdirAll(filepath.Dir(out), 0755); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	n, err := e.Write(doc, out)
	if err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	e.logf("Data saved to: %s", out)
	e.logf("File size: %.2f MB", float64(n)/bytesPerMB)

	res := &Result{Document: doc, Medium: summary, OutputPath: out, OutputBytes: n}

	if opts.MediumOutput {
		res.MediumPath = filepath.Join(filepath.Dir(out), MediumOutputName)
		if _, err := e.WriteMedium(doc, res.MediumPath); err != nil {
			return res, fmt.Errorf("write medium output: %w", err)
		}
		e.logf("Medium data saved to: %s", res.MediumPath)
	}

	res.CompletedAt = e.clock().Now()
	res.Elapsed = res.CompletedAt.Sub(start)
	e.logf("Export completed in %s", res.Elapsed.Round(time.Millisecond))
	return res, nil
}
