package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/onetake-ai/hackernews-watercooler/internal/synth"
	"github.com/onetake-ai/hackernews-watercooler/internal/thread"
	"github.com/onetake-ai/hackernews-watercooler/internal/voice"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("checkpoint: run not found")

// Run is a journaled synthesis run.
type Run struct {
	ID          string
	ItemID      int64
	Title       string
	Created     time.Time
	Updated     time.Time
	State       synth.State
	Progress    synth.Progress
	Thread      *thread.Thread
	Voices      map[string]voice.Voice
	PendingText string
	Fault       string
	Seed        uint64
	Output      string
}

// Summary is the listing view of a run.
type Summary struct {
	ID       string
	ItemID   int64
	Title    string
	Updated  time.Time
	State    synth.State
	Progress synth.Progress
	Fault    string
}

// Resumable reports whether the run stopped before finishing.
func (s Summary) Resumable() bool {
	return s.State.Kind != synth.StateDone
}

// CreateRun records a new run over t and returns its id.
func (s *Store) CreateRun(ctx context.Context, itemID int64, t *thread.Thread, seed uint64, output string) (string, error) {
	blob, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("checkpoint: encode thread: %w", err)
	}

	title := ""
	if root := t.Root(); root != nil {
		title = root.Title
	}
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()
	p := synth.NewProgress(t.Len())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, item_id, title, created_at, updated_at, last_index, total, thread, seed, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, itemID, title, now, now, p.LastIndex, p.Total, s.enc.EncodeAll(blob, nil), int64(seed), output)
	if err != nil {
		return "", fmt.Errorf("checkpoint: insert run: %w", err)
	}
	return id, nil
}

// AppendSegment stores seg at position seq of the run.
func (s *Store) AppendSegment(ctx context.Context, runID string, seq int, seg synth.Segment) error {
	return appendSegment(ctx, s.db, s.enc, runID, seq, seg)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendSegment(ctx context.Context, db execer, enc *zstd.Encoder, runID string, seq int, seg synth.Segment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO segments (run_id, seq, node_id, is_silence, duration_ms, audio)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, seq, seg.NodeID, seg.IsSilence, seg.DurationHint.Milliseconds(), enc.EncodeAll(seg.Audio, nil))
	if err != nil {
		return fmt.Errorf("checkpoint: insert segment %d: %w", seq, err)
	}
	return nil
}

// Snapshot is the mutable part of a run saved after every step.
type Snapshot struct {
	State       synth.State
	Progress    synth.Progress
	Voices      map[string]voice.Voice
	PendingText string
	Fault       string
}

// SaveProgress overwrites the run's cursor and state.
func (s *Store) SaveProgress(ctx context.Context, runID string, snap Snapshot) error {
	return saveProgress(ctx, s.db, runID, snap)
}

func saveProgress(ctx context.Context, db execer, runID string, snap Snapshot) error {
	voices, err := json.Marshal(snap.Voices)
	if err != nil {
		return fmt.Errorf("checkpoint: encode voices: %w", err)
	}
	if snap.Voices == nil {
		voices = []byte("{}")
	}

	res, err := db.ExecContext(ctx, `
		UPDATE runs SET updated_at = ?, state = ?, state_index = ?, processed = ?, last_index = ?,
			characters = ?, voices = ?, pending_text = ?, fault = ?
		WHERE id = ?`,
		time.Now().UnixMilli(), int(snap.State.Kind), snap.State.Index, snap.Progress.Processed,
		snap.Progress.LastIndex, snap.Progress.Characters, string(voices), snap.PendingText, snap.Fault, runID)
	if err != nil {
		return fmt.Errorf("checkpoint: update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadRun returns the run and its segments in order.
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, []synth.Segment, error) {
	var (
		r       Run
		created int64
		updated int64
		kind    int
		blob    []byte
		voices  string
		seed    int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, title, created_at, updated_at, state, state_index, processed, last_index,
			total, characters, thread, voices, pending_text, fault, seed, output
		FROM runs WHERE id = ?`, id).Scan(
		&r.ID, &r.ItemID, &r.Title, &created, &updated, &kind, &r.State.Index, &r.Progress.Processed,
		&r.Progress.LastIndex, &r.Progress.Total, &r.Progress.Characters, &blob, &voices,
		&r.PendingText, &r.Fault, &seed, &r.Output)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint: load run: %w", err)
	}
	r.Created = time.UnixMilli(created)
	r.Updated = time.UnixMilli(updated)
	r.State.Kind = synth.StateKind(kind)
	r.Seed = uint64(seed)

	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint: decompress thread: %w", err)
	}
	r.Thread = new(thread.Thread)
	if err := json.Unmarshal(raw, r.Thread); err != nil {
		return nil, nil, fmt.Errorf("checkpoint: decode thread: %w", err)
	}
	if err := r.Thread.Verify(); err != nil {
		return nil, nil, fmt.Errorf("checkpoint: stored thread: %w", err)
	}
	if err := json.Unmarshal([]byte(voices), &r.Voices); err != nil {
		return nil, nil, fmt.Errorf("checkpoint: decode voices: %w", err)
	}

	segs, err := s.loadSegments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &r, segs, nil
}

func (s *Store) loadSegments(ctx context.Context, runID string) ([]synth.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, is_silence, duration_ms, audio
		FROM segments WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: query segments: %w", err)
	}
	defer rows.Close()

	var segs []synth.Segment
	for rows.Next() {
		var (
			seg  synth.Segment
			ms   int64
			blob []byte
		)
		if err := rows.Scan(&seg.NodeID, &seg.IsSilence, &ms, &blob); err != nil {
			return nil, fmt.Errorf("checkpoint: scan segment: %w", err)
		}
		if seg.Audio, err = s.dec.DecodeAll(blob, nil); err != nil {
			return nil, fmt.Errorf("checkpoint: decompress segment: %w", err)
		}
		seg.DurationHint = time.Duration(ms) * time.Millisecond
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// ListRuns returns the most recently updated runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, title, updated_at, state, state_index, processed, last_index, total, characters, fault
		FROM runs ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			updated int64
			kind    int
		)
		if err := rows.Scan(&sum.ID, &sum.ItemID, &sum.Title, &updated, &kind, &sum.State.Index,
			&sum.Progress.Processed, &sum.Progress.LastIndex, &sum.Progress.Total,
			&sum.Progress.Characters, &sum.Fault); err != nil {
			return nil, fmt.Errorf("checkpoint: scan run: %w", err)
		}
		sum.Updated = time.UnixMilli(updated)
		sum.State.Kind = synth.StateKind(kind)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// LatestResumable returns the id of the most recent unfinished run.
func (s *Store) LatestResumable(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs WHERE state != ? ORDER BY updated_at DESC, id DESC LIMIT 1`,
		int(synth.StateDone)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("checkpoint: latest run: %w", err)
	}
	return id, nil
}

// Journal returns a synth.Journal that records into run id.
func (s *Store) Journal(id string) synth.Journal {
	return &journal{store: s, runID: id}
}

type journal struct {
	store *Store
	runID string
}

// Commit appends the step's segments and saves the cursor atomically.
func (j *journal) Commit(ctx context.Context, c synth.Commit) error {
	snap := Snapshot{
		State:    c.State,
		Progress: c.Progress,
		Voices:   c.Voices,
	}
	if c.Cause != nil {
		snap.PendingText = c.Text
		snap.Fault = c.Cause.Error()
	}

	return j.store.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM segments WHERE run_id = ?`, j.runID).Scan(&next); err != nil {
			return fmt.Errorf("checkpoint: next segment: %w", err)
		}
		for i, seg := range c.Segments {
			if err := appendSegment(ctx, tx, j.store.enc, j.runID, next+i, seg); err != nil {
				return err
			}
		}
		return saveProgress(ctx, tx, j.runID, snap)
	})
}
