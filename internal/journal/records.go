package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/navqueue/internal/router"
)

// Run identifies one router instance.
type Run struct {
	Token  string `json:"token"`
	Label  string `json:"label"`
	Policy string `json:"policy"`
}

// Record is one stored router event.
type Record struct {
	Run        string `json:"run"`
	Seq        int64  `json:"seq"`
	Type       string `json:"type"`
	Submission int64  `json:"submission"`
	Kind       string `json:"kind,omitempty"`
	Mutations  int    `json:"mutations,omitempty"`
	OK         bool   `json:"ok"`
	Policy     string `json:"policy,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FromEvent converts a router event to a Record.
func FromEvent(ev router.Event) Record {
	rec := Record{
		Run:        ev.Run,
		Seq:        ev.Seq,
		Type:       string(ev.Type),
		Submission: ev.Submission,
		Kind:       ev.Kind,
		Mutations:  ev.Mutations,
		OK:         ev.OK,
		Error:      ev.Error,
	}
	if ev.Type == router.EventRefused {
		rec.Policy = ev.Policy.String()
	}
	return rec
}

// Submission summarizes one call within a run.
type Submission struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	Turns       int    `json:"turns"`
	Mutations   int    `json:"mutations"`
	Refusals    int    `json:"refusals"`
	Interrupted bool   `json:"interrupted"`
	Cancelled   bool   `json:"cancelled"`
	Completed   bool   `json:"completed"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// StartRun records a run. Starting an existing run is a no-op.
func (j *Journal) StartRun(ctx context.Context, run Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (token, label, policy)
		VALUES (?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, run.Token, run.Label, run.Policy)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// Write appends rec. Duplicate (run, seq) pairs are silently ignored.
func (j *Journal) Write(ctx context.Context, rec Record) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
		(run_token, seq, type, submission, kind, mutations, ok, policy, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.Run,
		rec.Seq,
		rec.Type,
		rec.Submission,
		rec.Kind,
		rec.Mutations,
		rec.OK,
		rec.Policy,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("write event %d: %w", rec.Seq, err)
	}
	return nil
}

// ReadRun returns the records of a run ordered by seq.
// Returns an empty slice (not nil) for unknown runs.
func (j *Journal) ReadRun(ctx context.Context, token string) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_token, seq, type, submission, kind, mutations, ok, policy, error
		FROM events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.Run,
			&rec.Seq,
			&rec.Type,
			&rec.Submission,
			&rec.Kind,
			&rec.Mutations,
			&rec.OK,
			&rec.Policy,
			&rec.Error,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return records, nil
}

// ListRuns returns all runs ordered by token. UUIDv7 tokens sort by
// creation time.
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT token, label, policy
		FROM runs
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.Token, &run.Label, &run.Policy); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadRunInfo returns the run recorded under token.
func (j *Journal) ReadRunInfo(ctx context.Context, token string) (Run, error) {
	var run Run
	err := j.db.QueryRowContext(ctx, `
		SELECT token, label, policy FROM runs WHERE token = ?
	`, token).Scan(&run.Token, &run.Label, &run.Policy)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %s not found", token)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// Summaries folds a run's records into one Submission per call, ordered by
// submission id.
func (j *Journal) Summaries(ctx context.Context, token string) ([]Submission, error) {
	records, err := j.ReadRun(ctx, token)
	if err != nil {
		return nil, err
	}

	var order []int64
	byID := make(map[int64]*Submission)
	for _, rec := range records {
		s, ok := byID[rec.Submission]
		if !ok {
			s = &Submission{ID: rec.Submission}
			byID[rec.Submission] = s
			order = append(order, rec.Submission)
		}

		switch router.EventType(rec.Type) {
		case router.EventSubmitted:
			s.Kind = rec.Kind
		case router.EventExecuted:
			s.Turns++
			s.Mutations += rec.Mutations
		case router.EventRefused:
			s.Refusals++
		case router.EventInterrupted:
			s.Interrupted = true
		case router.EventCancelled:
			s.Cancelled = true
		case router.EventCompleted:
			s.Completed = true
			s.OK = rec.OK
			s.Error = rec.Error
		}
	}

	out := make([]Submission, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// Recorder is a router.Observer writing every event to the journal.
//
// Write failures are logged and the first one is kept for Err; the router
// itself is never blocked or failed by the journal.
type Recorder struct {
	j   *Journal
	ctx context.Context
	log *slog.Logger

	mu  sync.Mutex
	err error
}

// Recorder starts run and returns an observer recording into it.
func (j *Journal) Recorder(ctx context.Context, run Run, logger *slog.Logger) (*Recorder, error) {
	if err := j.StartRun(ctx, run); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{j: j, ctx: ctx, log: logger}, nil
}

// Observe implements router.Observer.
func (r *Recorder) Observe(ev router.Event) {
	if err := r.j.Write(r.ctx, FromEvent(ev)); err != nil {
		r.log.Error("journal write failed", "run", ev.Run, "seq", ev.Seq, "error", err)
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
