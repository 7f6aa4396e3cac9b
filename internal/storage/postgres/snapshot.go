package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/floor"
	"github.com/hollowroot/keeper/internal/game/grid"
)

// ErrNoSnapshot is returned when no snapshot exists to load.
var ErrNoSnapshot = errors.New("no snapshot found")

// FloorRecord is the persisted form of one dungeon floor.
type FloorRecord struct {
	Index     int
	UpStair   *grid.Pos
	DownStair *grid.Pos
	HasCore   bool
	Walls     []grid.Pos
}

// Snapshot is a persisted dungeon state: every floor at a point in time.
type Snapshot struct {
	ID      int64
	TakenAt time.Time
	Floors  []FloorRecord
}

// SnapshotRepository provides dungeon snapshot persistence operations.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a SnapshotRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save persists the given floor records as a new snapshot.
//
// Precondition: floors must be non-empty with contiguous indexes from 1.
// Postcondition: Returns the new snapshot ID; all floors are written in a
// single transaction.
func (r *SnapshotRepository) Save(ctx context.Context, floors []FloorRecord) (int64, error) {
	if len(floors) == 0 {
		return 0, errors.New("snapshot must contain at least one floor")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO dungeon_snapshots DEFAULT VALUES RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting snapshot row: %w", err)
	}

	for _, f := range floors {
		walls, err := json.Marshal(f.Walls)
		if err != nil {
			return 0, fmt.Errorf("encoding walls for floor %d: %w", f.Index, err)
		}
		up, err := encodeStair(f.UpStair)
		if err != nil {
			return 0, fmt.Errorf("encoding up stair for floor %d: %w", f.Index, err)
		}
		down, err := encodeStair(f.DownStair)
		if err != nil {
			return 0, fmt.Errorf("encoding down stair for floor %d: %w", f.Index, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO snapshot_floors (snapshot_id, floor_index, up_stair, down_stair, has_core, walls)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, f.Index, up, down, f.HasCore, walls,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting floor %d: %w", f.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}
	return id, nil
}

// Load retrieves the snapshot with the given ID.
//
// Postcondition: Returns the Snapshot with floors ordered by index,
// or ErrNoSnapshot if the ID does not exist.
func (r *SnapshotRepository) Load(ctx context.Context, id int64) (Snapshot, error) {
	var snap Snapshot
	err := r.db.QueryRow(ctx,
		`SELECT id, taken_at FROM dungeon_snapshots WHERE id = $1`,
		id,
	).Scan(&snap.ID, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT floor_index, up_stair, down_stair, has_core, walls
		 FROM snapshot_floors WHERE snapshot_id = $1 ORDER BY floor_index`,
		id,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying snapshot floors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       FloorRecord
			up, down  []byte
			wallsJSON []byte
		)
		if err := rows.Scan(&rec.Index, &up, &down, &rec.HasCore, &wallsJSON); err != nil {
			return Snapshot{}, fmt.Errorf("scanning snapshot floor: %w", err)
		}
		if rec.UpStair, err = decodeStair(up); err != nil {
			return Snapshot{}, fmt.Errorf("decoding up stair for floor %d: %w", rec.Index, err)
		}
		if rec.DownStair, err = decodeStair(down); err != nil {
			return Snapshot{}, fmt.Errorf("decoding down stair for floor %d: %w", rec.Index, err)
		}
		if err := json.Unmarshal(wallsJSON, &rec.Walls); err != nil {
			return Snapshot{}, fmt.Errorf("decoding walls for floor %d: %w", rec.Index, err)
		}
		snap.Floors = append(snap.Floors, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterating snapshot floors: %w", err)
	}
	return snap, nil
}

// LoadLatest retrieves the most recently saved snapshot.
//
// Postcondition: Returns the newest Snapshot or ErrNoSnapshot.
func (r *SnapshotRepository) LoadLatest(ctx context.Context) (Snapshot, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT id FROM dungeon_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return r.Load(ctx, id)
}

// Prune deletes all but the newest keep snapshots.
//
// Precondition: keep >= 0.
// Postcondition: Returns the number of snapshots deleted.
func (r *SnapshotRepository) Prune(ctx context.Context, keep int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM dungeon_snapshots
		 WHERE id NOT IN (SELECT id FROM dungeon_snapshots ORDER BY id DESC LIMIT $1)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordsFromRegistry captures every floor of reg as persistable records.
//
// Postcondition: Returns records ordered by floor index from 1 to Depth.
func RecordsFromRegistry(reg *floor.Registry) []FloorRecord {
	depth := reg.Depth()
	records := make([]FloorRecord, 0, depth)
	for i := 1; i <= depth; i++ {
		f, ok := reg.GetFloor(i)
		if !ok {
			continue
		}
		rec := FloorRecord{
			Index:     f.Index,
			UpStair:   clonePos(f.UpStair),
			DownStair: clonePos(f.DownStair),
			HasCore:   f.HasCore,
		}
		for p := range f.Walls() {
			rec.Walls = append(rec.Walls, p)
		}
		records = append(records, rec)
	}
	return records
}

// RestoreRegistry rebuilds a Registry from snapshot records.
//
// Precondition: records must be ordered with contiguous indexes from 1 and
// consistent with cfg.
// Postcondition: Returns a Registry whose floors, stairs, and walls match the
// records, or a non-nil error.
func RestoreRegistry(cfg floor.RegistryConfig, records []FloorRecord, bus *events.Bus) (*floor.Registry, error) {
	reg, err := floor.NewRegistry(cfg, bus)
	if err != nil {
		return nil, fmt.Errorf("restoring registry: %w", err)
	}
	for _, rec := range records {
		f, err := reg.CreateFloor(rec.Index)
		if err != nil {
			return nil, fmt.Errorf("restoring floor %d: %w", rec.Index, err)
		}
		f.UpStair = clonePos(rec.UpStair)
		f.DownStair = clonePos(rec.DownStair)

		walls := make(map[grid.Pos]bool, len(rec.Walls))
		for _, p := range rec.Walls {
			walls[p] = true
		}
		if err := reg.CommitWalls(rec.Index, walls); err != nil {
			return nil, fmt.Errorf("restoring walls on floor %d: %w", rec.Index, err)
		}
	}
	return reg, nil
}

func clonePos(p *grid.Pos) *grid.Pos {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func encodeStair(p *grid.Pos) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func decodeStair(data []byte) (*grid.Pos, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p grid.Pos
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
