package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
	"github.com/banshee-data/waveform.report/internal/lidar/scan"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("scan run not found")

// Run describes one persisted scan result.
type Run struct {
	RunID      string          `json:"run_id"`
	SourcePath string          `json:"source_path"`
	Kind       scan.Kind       `json:"kind"`
	Params     json.RawMessage `json:"params,omitempty"`
	Stats      scan.Stats      `json:"stats"`
	PulseCount int             `json:"pulse_count"`
	PointCount int             `json:"point_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SaveResult stores res under a new run ID in one transaction. params is
// marshalled to JSON and may be nil.
func (s *Store) SaveResult(ctx context.Context, sourcePath string, res *scan.Result, params any) (*Run, error) {
	if res == nil || res.Manager == nil {
		return nil, errors.New("save result: no manager")
	}
	run := &Run{
		RunID:      uuid.New().String(),
		SourcePath: sourcePath,
		Kind:       res.Kind,
		Stats:      res.Stats,
		PulseCount: res.Manager.Len(),
		PointCount: len(res.Manager.Unassociated()),
		CreatedAt:  s.clock.Now().UTC(),
	}
	for _, p := range res.Manager.Pulses() {
		run.PointCount += len(p.Points)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		run.Params = raw
	}
	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (
			run_id, source_path, kind, params_json, stats_json,
			pulse_count, point_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.SourcePath, string(run.Kind), nullJSON(run.Params), string(statsJSON),
		run.PulseCount, run.PointCount, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan run: %w", err)
	}

	pulseStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pulses (
			run_id, ordinal, waveform_key,
			origin_x, origin_y, origin_z, step_x, step_y, step_z,
			samples, gps_time, scan_angle, classification, return_count,
			agc_gain, spacing_ps, digitizer_gain, digitizer_offset
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare pulse insert: %w", err)
	}
	defer pulseStmt.Close()

	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO discrete_points (
			run_id, ordinal, waveform_key, x, y, z, intensity,
			classification, return_number, gps_time, return_location_ps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare point insert: %w", err)
	}
	defer pointStmt.Close()

	ordinal := 0
	insertPoint := func(d pulse.DiscretePoint, key sql.NullInt64) error {
		_, err := pointStmt.ExecContext(ctx,
			run.RunID, ordinal, key,
			d.Position.X, d.Position.Y, d.Position.Z,
			d.Intensity, d.Classification, d.ReturnNumber,
			d.GPSTime, d.ReturnLocationPs,
		)
		if err != nil {
			return fmt.Errorf("insert discrete point %d: %w", ordinal, err)
		}
		ordinal++
		return nil
	}

	for i, p := range res.Manager.Pulses() {
		samples := p.Samples
		if samples == nil {
			samples = []byte{}
		}
		_, err := pulseStmt.ExecContext(ctx,
			run.RunID, i, int64(p.Key),
			p.Origin.X, p.Origin.Y, p.Origin.Z,
			p.Step.X, p.Step.Y, p.Step.Z,
			samples, p.GPSTime, p.ScanAngle, p.Classification, p.ReturnCount,
			p.AGCGain, p.SpacingPs, p.DigitizerGain, p.DigitizerOffset,
		)
		if err != nil {
			return nil, fmt.Errorf("insert pulse %d: %w", i, err)
		}
		key := sql.NullInt64{Int64: int64(p.Key), Valid: true}
		for _, d := range p.Points {
			if err := insertPoint(d, key); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range res.Manager.Unassociated() {
		if err := insertPoint(d, sql.NullInt64{}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit scan run: %w", err)
	}
	return run, nil
}

const runColumns = `run_id, source_path, kind, params_json, stats_json, pulse_count, point_count, created_at`

// GetRun loads one run's metadata.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scan_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get scan run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM scan_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan runs: %w", err)
	}
	return runs, nil
}

// LoadPulses returns the run's pulses in their stored order, each with
// the discrete returns that were attached to it.
func (s *Store) LoadPulses(ctx context.Context, runID string) ([]*pulse.Pulse, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT waveform_key, origin_x, origin_y, origin_z, step_x, step_y, step_z,
			samples, gps_time, scan_angle, classification, return_count,
			agc_gain, spacing_ps, digitizer_gain, digitizer_offset
		FROM pulses WHERE run_id = ? ORDER BY ordinal
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query pulses: %w", err)
	}
	defer rows.Close()

	var pulses []*pulse.Pulse
	byKey := make(map[uint64]*pulse.Pulse)
	for rows.Next() {
		var (
			p   pulse.Pulse
			key int64
		)
		err := rows.Scan(&key,
			&p.Origin.X, &p.Origin.Y, &p.Origin.Z,
			&p.Step.X, &p.Step.Y, &p.Step.Z,
			&p.Samples, &p.GPSTime, &p.ScanAngle, &p.Classification, &p.ReturnCount,
			&p.AGCGain, &p.SpacingPs, &p.DigitizerGain, &p.DigitizerOffset,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pulse row: %w", err)
		}
		p.Key = uint64(key)
		pulses = append(pulses, &p)
		byKey[p.Key] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pulses: %w", err)
	}
	rows.Close()

	points, err := s.loadPoints(ctx, runID, "waveform_key IS NOT NULL")
	if err != nil {
		return nil, err
	}
	for _, d := range points {
		if p, ok := byKey[d.WaveformKey]; ok {
			p.Points = append(p.Points, d)
		}
	}
	return pulses, nil
}

// LoadUnassociated returns the run's discrete returns that have no waveform.
func (s *Store) LoadUnassociated(ctx context.Context, runID string) ([]pulse.DiscretePoint, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.loadPoints(ctx, runID, "waveform_key IS NULL")
}

func (s *Store) loadPoints(ctx context.Context, runID, cond string) ([]pulse.DiscretePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT waveform_key, x, y, z, intensity, classification,
			return_number, gps_time, return_location_ps
		FROM discrete_points WHERE run_id = ? AND `+cond+` ORDER BY ordinal
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query discrete points: %w", err)
	}
	defer rows.Close()

	var points []pulse.DiscretePoint
	for rows.Next() {
		var (
			d   pulse.DiscretePoint
			key sql.NullInt64
		)
		err := rows.Scan(&key, &d.Position.X, &d.Position.Y, &d.Position.Z, &d.Intensity, &d.Classification,
			&d.ReturnNumber, &d.GPSTime, &d.ReturnLocationPs)
		if err != nil {
			return nil, fmt.Errorf("scan discrete point row: %w", err)
		}
		if key.Valid {
			d.WaveformKey = uint64(key.Int64)
			d.HasWaveform = true
		}
		points = append(points, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discrete points: %w", err)
	}
	return points, nil
}

// DeleteRun removes a run with its pulses and discrete points.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"discrete_points", "pulses"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scan_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete scan run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		kind      string
		params    sql.NullString
		statsJSON string
		created   int64
	)
	err := row.Scan(&run.RunID, &run.SourcePath, &kind, &params, &statsJSON,
		&run.PulseCount, &run.PointCount, &created)
	if err != nil {
		return nil, err
	}
	run.Kind = scan.Kind(kind)
	if params.Valid {
		run.Params = json.RawMessage(params.String)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("decode stats of run %s: %w", run.RunID, err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return &run, nil
}

func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
