package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/modharvest"
)

// Compile-time interface verification.
var _ modharvest.Sink = (*Sink)(nil)

// Sink stores completed runs and their node records. Emitting a run again
// replaces its records, so re-emission leaves the database unchanged.
type Sink struct {
	db *DB
}

// NewSink creates a new Sink.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

// Emit writes the aggregate and every node record in one transaction.
func (s *Sink) Emit(ctx context.Context, out *modharvest.Output) error {
	if out == nil || out.Aggregate == nil {
		return modharvest.Errorf(modharvest.EINVALID, "output has no aggregate record")
	}
	agg := out.Aggregate
	if agg.RunID == "" {
		return modharvest.Errorf(modharvest.EINVALID, "output has no run id")
	}

	raw, err := json.Marshal(agg.RawStructure)
	if err != nil {
		return fmt.Errorf("encoding raw structure: %w", err)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, total_sections, total_modules, raw_structure, completed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_sections = excluded.total_sections,
			total_modules = excluded.total_modules,
			raw_structure = excluded.raw_structure,
			completed_at = excluded.completed_at
	`, agg.RunID, agg.TotalSections, agg.TotalModules, string(raw), formatTime(agg.CompletedAt)); err != nil {
		return fmt.Errorf("writing run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE run_id = ?", agg.RunID); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, position, section_title, module_title, module_id, video_link,
			content, failed, content_hash, markdown, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range out.Records {
		if _, err := stmt.ExecContext(ctx, agg.RunID, r.Position, r.SectionTitle, r.ModuleTitle, r.ModuleID,
			r.VideoLink, r.Content, r.Failed, r.ContentHash, r.Markdown, formatTime(r.ScrapedAt)); err != nil {
			return fmt.Errorf("writing record %d: %w", r.Position, err)
		}
	}

	return tx.Commit()
}

// FindRun returns the aggregate record of a stored run without its
// section data.
func (s *Sink) FindRun(ctx context.Context, runID string) (*modharvest.AggregateRecord, error) {
	var agg modharvest.AggregateRecord
	var raw, completedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_sections, total_modules, raw_structure, completed_at
		FROM runs
		WHERE id = ?
	`, runID).Scan(&agg.RunID, &agg.TotalSections, &agg.TotalModules, &raw, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "run %q not found", runID)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(raw), &agg.RawStructure); err != nil {
		return nil, fmt.Errorf("failed to decode raw_structure: %w", err)
	}
	if agg.CompletedAt, err = parseRFC3339(completedAt, "completed_at"); err != nil {
		return nil, err
	}
	return &agg, nil
}

// RecordFilter selects node records.
type RecordFilter struct {
	RunID  string
	Failed *bool
	Limit  int
	Offset int
}

// FindRecords returns records matching the filter in flattened order.
func (s *Sink) FindRecords(ctx context.Context, filter RecordFilter) ([]*modharvest.NodeRecord, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT run_id, position, section_title, module_title, module_id, video_link,
		content, failed, content_hash, markdown, scraped_at FROM records WHERE 1=1`)

	if filter.RunID != "" {
		query.WriteString(" AND run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Failed != nil {
		query.WriteString(" AND failed = ?")
		args = append(args, *filter.Failed)
	}
	query.WriteString(" ORDER BY run_id, position ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*modharvest.NodeRecord
	for rows.Next() {
		var r modharvest.NodeRecord
		var scrapedAt string
		if err := rows.Scan(&r.RunID, &r.Position, &r.SectionTitle, &r.ModuleTitle, &r.ModuleID, &r.VideoLink,
			&r.Content, &r.Failed, &r.ContentHash, &r.Markdown, &scrapedAt); err != nil {
			return nil, err
		}
		if r.ScrapedAt, err = parseRFC3339(scrapedAt, "scraped_at"); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}
