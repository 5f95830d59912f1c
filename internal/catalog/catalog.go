// Package catalog keeps a SQLite ledger of completed exports so a directory of
// visualiser documents can be traced back to the runs and caps that produced
// them.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/raydata/internal/raydata"
)

// Catalog is an open export ledger.
type Catalog struct {
	db *sql.DB
}

// Record is one completed export.
type Record struct {
	ID                 string
	RunDir             string
	MaxRays            int
	NumRays            int
	NumMediumParticles int
	MeanRadius         float64
	OutputPath         string
	OutputBytes        int64
	ToolVersion        string
	CreatedAt          time.Time
	Parameters         []Parameter
}

// Parameter is one run parameter captured with an export. Exactly one of
// Number and Text is set.
type Parameter struct {
	Name   string
	Number *float64
	Text   *string
}

// Open opens (creating if needed) the catalog at path and applies pending
// migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	c := &Catalog{db: db}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RecordFromResult builds a catalog record for a finished export.
func RecordFromResult(opts raydata.Options, res *raydata.Result, toolVersion string) Record {
	doc := res.Document
	rec := Record{
		RunDir:             opts.RunDir,
		MaxRays:            opts.MaxRays,
		NumRays:            doc.Stats.NumRays,
		NumMediumParticles: doc.Stats.NumMediumParticles,
		MeanRadius:         doc.MeanRadius,
		OutputPath:         res.OutputPath,
		OutputBytes:        res.OutputBytes,
		ToolVersion:        toolVersion,
		CreatedAt:          res.CompletedAt,
	}
	if doc.Parameters == nil {
		return rec
	}
	for _, name := range doc.Parameters.Keys() {
		v, _ := doc.Parameters.Get(name)
		p := Parameter{Name: name}
		if f, ok := v.Float(); ok {
			p.Number = &f
		} else {
			s := v.Text
			p.Text = &s
		}
		rec.Parameters = append(rec.Parameters, p)
	}
	return rec
}

// RecordExport stores rec and its parameters in one transaction and returns
// the generated export ID.
func (c *Catalog) RecordExport(rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := c.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO exports (
		export_id, run_dir, max_rays, num_rays, num_medium_particles,
		mean_radius, output_path, output_bytes, tool_version, created_unix_nanos
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunDir, rec.MaxRays, rec.NumRays, rec.NumMediumParticles,
		rec.MeanRadius, rec.OutputPath, rec.OutputBytes, rec.ToolVersion, rec.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert export: %w", err)
	}

	for i, p := range rec.Parameters {
		_, err := tx.Exec(`INSERT INTO export_parameters (export_id, position, name, number_value, text_value)
			VALUES (?, ?, ?, ?, ?)`, rec.ID, i, p.Name, p.Number, p.Text)
		if err != nil {
			return "", fmt.Errorf("insert parameter %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Exports lists recorded exports, newest first. Parameters are not loaded;
// use Parameters for a single export.
func (c *Catalog) Exports() ([]Record, error) {
	rows, err := c.db.Query(`SELECT export_id, run_dir, max_rays, num_rays, num_medium_particles,
		mean_radius, output_path, output_bytes, tool_version, created_unix_nanos
		FROM exports ORDER BY created_unix_nanos DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.ID, &r.RunDir, &r.MaxRays, &r.NumRays, &r.NumMediumParticles,
			&r.MeanRadius, &r.OutputPath, &r.OutputBytes, &r.ToolVersion, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Parameters returns the parameters recorded with an export in source order.
func (c *Catalog) Parameters(exportID string) ([]Parameter, error) {
	rows, err := c.db.Query(`SELECT name, number_value, text_value FROM export_parameters
		WHERE export_id = ? ORDER BY position`, exportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Parameter
	for rows.Next() {
		var p Parameter
		var num sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&p.Name, &num, &text); err != nil {
			return nil, err
		}
		if num.Valid {
			f := num.Float64
			p.Number = &f
		}
		if text.Valid {
			s := text.String
			p.Text = &s
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
