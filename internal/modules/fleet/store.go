// README: Vehicle registry backed by PostgreSQL.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetmatch/internal/types"
)

const vehicleColumns = `id, fleet_id, type, capacity_kg, fuel_l_per_100km, status, base_city, base_country, features, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("fleet.ListVehicles: %w", err)
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("fleet.ListVehicles scan: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fleet.ListVehicles: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fleet.Get: %w", err)
	}
	return v, nil
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := s.db.Exec(ctx, `UPDATE vehicles SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("fleet.SetStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Summary(ctx context.Context) (StatusSummary, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM vehicles GROUP BY status`)
	if err != nil {
		return StatusSummary{}, fmt.Errorf("fleet.Summary: %w", err)
	}
	defer rows.Close()

	sum := StatusSummary{ByStatus: map[Status]int{}, UpdatedAt: time.Now()}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusSummary{}, fmt.Errorf("fleet.Summary scan: %w", err)
		}
		sum.ByStatus[Status(status)] = n
		sum.Total += n
	}
	if err := rows.Err(); err != nil {
		return StatusSummary{}, fmt.Errorf("fleet.Summary: %w", err)
	}
	sum.Available = sum.ByStatus[StatusIdle] + sum.ByStatus[StatusAssigned]
	return sum, nil
}

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	var vType, status string
	err := row.Scan(
		&v.ID, &v.FleetID, &vType, &v.CapacityKg, &v.FuelConsumption, &status,
		&v.Base.City, &v.Base.Country, &v.Features, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Type = Type(vType)
	v.Status = Status(status)
	return &v, nil
}
