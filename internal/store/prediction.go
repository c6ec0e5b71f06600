package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const predictionsTable = "predictions"

var predictionColumns = []string{
	"id", "sequence", "uuid", "created_at", "schema_version", "input", "vector",
	"label", "probability", "threshold", "attribution", "attribution_error", "narrative",
}

// predictionRepo implements PredictionRepo with ent's SQL builder.
type predictionRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// storedVector is the JSON shape of the vector column.
type storedVector struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

// storedAttribution is the JSON shape of the attribution column.
type storedAttribution struct {
	Baseline float64            `json:"baseline"`
	Scores   []AttributionEntry `json:"scores"`
}

func (r *predictionRepo) Append(ctx context.Context, rec *PredictionRecord) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	vector, err := json.Marshal(storedVector{Columns: rec.Columns, Values: rec.Vector})
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	var attribution string
	if rec.HasAttribution() {
		raw, err := json.Marshal(storedAttribution{Baseline: rec.Baseline, Scores: rec.Attributions})
		if err != nil {
			return fmt.Errorf("marshal attribution: %w", err)
		}
		attribution = string(raw)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(predictionsTable).
		Columns(predictionColumns[1:]...).
		Values(
			seqNum, rec.UUID, rec.CreatedAt.UnixMilli(), rec.SchemaVersion,
			string(input), string(vector), rec.Label, rec.Probability, rec.Threshold,
			attribution, rec.AttributionError, rec.Narrative,
		).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("prediction id: %w", err)
	}
	rec.ID = id
	rec.Sequence = seqNum
	return nil
}

func (r *predictionRepo) List(ctx context.Context, opts QueryOpts) ([]PredictionRecord, error) {
	b := entsql.Dialect(dialect.SQLite)
	sel := b.Select(predictionColumns...).
		From(b.Table(predictionsTable)).
		OrderBy(entsql.Desc("sequence"))
	applyQueryOpts(sel, opts)

	return r.query(ctx, sel)
}

func (r *predictionRepo) FindByPrefix(ctx context.Context, prefix string, limit int) ([]PredictionRecord, error) {
	if prefix == "" {
		return nil, errors.New("empty uuid prefix")
	}
	b := entsql.Dialect(dialect.SQLite)
	sel := b.Select(predictionColumns...).
		From(b.Table(predictionsTable)).
		Where(entsql.HasPrefix("uuid", prefix)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel.Limit(limit)
	}
	return r.query(ctx, sel)
}

func (r *predictionRepo) query(ctx context.Context, sel *entsql.Selector) ([]PredictionRecord, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *predictionRepo) Get(ctx context.Context, uuid string) (*PredictionRecord, error) {
	b := entsql.Dialect(dialect.SQLite)
	query, args := b.Select(predictionColumns...).
		From(b.Table(predictionsTable)).
		Where(entsql.EQ("uuid", uuid)).
		Limit(1).
		Query()

	rec, err := scanPrediction(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *predictionRepo) Count(ctx context.Context) (int, error) {
	b := entsql.Dialect(dialect.SQLite)
	query, args := b.Select(entsql.Count("*")).From(b.Table(predictionsTable)).Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (*PredictionRecord, error) {
	var (
		rec                        PredictionRecord
		createdAt                  int64
		input, vector, attribution string
	)
	err := row.Scan(
		&rec.ID, &rec.Sequence, &rec.UUID, &createdAt, &rec.SchemaVersion,
		&input, &vector, &rec.Label, &rec.Probability, &rec.Threshold,
		&attribution, &rec.AttributionError, &rec.Narrative,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan prediction: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)

	if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input for %s: %w", rec.UUID, err)
	}
	var sv storedVector
	if err := json.Unmarshal([]byte(vector), &sv); err != nil {
		return nil, fmt.Errorf("unmarshal vector for %s: %w", rec.UUID, err)
	}
	rec.Columns, rec.Vector = sv.Columns, sv.Values

	if attribution != "" {
		var sa storedAttribution
		if err := json.Unmarshal([]byte(attribution), &sa); err != nil {
			return nil, fmt.Errorf("unmarshal attribution for %s: %w", rec.UUID, err)
		}
		rec.Baseline, rec.Attributions = sa.Baseline, sa.Scores
	}
	return &rec, nil
}

// applyQueryOpts adds the sequence and time filters shared by every listing.
func applyQueryOpts(sel *entsql.Selector, opts QueryOpts) {
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("created_at", opts.From.UnixMilli()))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("created_at", opts.To.UnixMilli()))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
}
