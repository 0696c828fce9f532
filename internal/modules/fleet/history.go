// README: Position history: throttled Postgres snapshots of telemetry fixes for replay.
package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleetmatch/internal/types"
)

type Snapshot struct {
	ID         int64       `json:"id"`
	VehicleID  types.ID    `json:"vehicle_id"`
	Point      types.Point `json:"point"`
	RecordedAt time.Time   `json:"recorded_at"`
}

type HistoryStore struct {
	db *pgxpool.Pool
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO vehicle_position_snapshots (vehicle_id, lat, lng, recorded_at)
VALUES ($1, $2, $3, $4)
`, snap.VehicleID, snap.Point.Lat, snap.Point.Lng, snap.RecordedAt)
	if err != nil {
		return fmt.Errorf("fleet.HistoryStore.AppendSnapshot: %w", err)
	}
	return nil
}

// Track returns snapshots for one vehicle since the given time, oldest first.
func (s *HistoryStore) Track(ctx context.Context, id types.ID, since time.Time, limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, vehicle_id, lat, lng, recorded_at
FROM vehicle_position_snapshots
WHERE vehicle_id = $1 AND recorded_at >= $2
ORDER BY recorded_at ASC
LIMIT $3
`, id, since, limit)
	if err != nil {
		return nil, fmt.Errorf("fleet.HistoryStore.Track: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.VehicleID, &snap.Point.Lat, &snap.Point.Lng, &snap.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
