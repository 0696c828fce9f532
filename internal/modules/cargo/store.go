// README: Cargo job store backed by PostgreSQL.
package cargo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetmatch/internal/types"
)

// defaultListLimit caps ListAvailable when the query sets no limit.
const defaultListLimit = 500

const jobColumns = `
	id, origin_city, origin_country, origin_lat, origin_lng,
	dest_city, dest_country, dest_lat, dest_lng,
	weight_kg, category, price_amount, price_currency, price_type,
	loading_at, delivery_at, deadline, urgency, requirements,
	status, status_version, vehicle_id, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, j *Job) error {
	oLat, oLng := coordArgs(j.Origin)
	dLat, dLng := coordArgs(j.Destination)
	_, err := s.db.Exec(ctx, `
		INSERT INTO cargo_jobs (`+jobColumns+`)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24
		)`,
		string(j.ID), j.Origin.City, j.Origin.Country, oLat, oLng,
		j.Destination.City, j.Destination.Country, dLat, dLng,
		j.WeightKg, string(j.Category), j.Price.Amount, j.Price.Currency, string(j.PriceType),
		j.LoadingAt, j.DeliveryAt, j.Deadline, string(j.Urgency), requirementsArg(j.Requirements),
		string(j.Status), j.StatusVersion, idArg(j.VehicleID), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cargo.Create: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM cargo_jobs WHERE id = $1`, string(id))
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cargo.Get: %w", err)
	}
	return j, nil
}

// ListAvailable returns open (status=new) jobs, oldest first.
func (s *Store) ListAvailable(ctx context.Context, q Query) ([]Job, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+jobColumns+`
		FROM cargo_jobs
		WHERE status = 'new'
		  AND ($1::text = '' OR urgency = $1)
		ORDER BY created_at, id
		LIMIT $2`,
		string(q.Urgency), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("cargo.ListAvailable: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("cargo.ListAvailable scan: %w", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cargo.ListAvailable: %w", err)
	}
	return out, nil
}

// UpdateStatus applies a transition only if the row still has the expected
// status and version. It reports false when another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, vehicleID *types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE cargo_jobs
		SET status = $1,
		    status_version = status_version + 1,
		    vehicle_id = COALESCE($2, vehicle_id),
		    updated_at = NOW()
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		idArg(vehicleID),
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, fmt.Errorf("cargo.UpdateStatus: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) PerformanceSummary(ctx context.Context, since time.Time) (Performance, error) {
	p := Performance{Since: since}
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'new'),
			COUNT(*) FILTER (WHERE status = 'taken'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(SUM(price_amount) FILTER (WHERE status = 'completed' AND price_type = 'flat'), 0),
			COALESCE(AVG(weight_kg), 0)
		FROM cargo_jobs
		WHERE created_at >= $1`, since,
	).Scan(&p.Open, &p.Taken, &p.Completed, &p.Cancelled, &p.FlatRevenue, &p.AvgWeightKg)
	if err != nil {
		return Performance{}, fmt.Errorf("cargo.PerformanceSummary: %w", err)
	}
	return p, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j                      Job
		oLat, oLng, dLat, dLng *float64
		category, priceType    string
		urgency, status        string
		vehicleID              *string
	)
	err := row.Scan(
		&j.ID, &j.Origin.City, &j.Origin.Country, &oLat, &oLng,
		&j.Destination.City, &j.Destination.Country, &dLat, &dLng,
		&j.WeightKg, &category, &j.Price.Amount, &j.Price.Currency, &priceType,
		&j.LoadingAt, &j.DeliveryAt, &j.Deadline, &urgency, &j.Requirements,
		&status, &j.StatusVersion, &vehicleID, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Category = Category(category)
	j.PriceType = PriceType(priceType)
	j.Urgency = Urgency(urgency)
	j.Status = Status(status)
	j.Origin.Coords = coords(oLat, oLng)
	j.Destination.Coords = coords(dLat, dLng)
	if vehicleID != nil {
		v := types.ID(*vehicleID)
		j.VehicleID = &v
	}
	return &j, nil
}

func coords(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}

func coordArgs(p types.Place) (*float64, *float64) {
	if p.Coords == nil {
		return nil, nil
	}
	lat, lng := p.Coords.Lat, p.Coords.Lng
	return &lat, &lng
}

func idArg(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func requirementsArg(r []string) []string {
	if r == nil {
		return []string{}
	}
	return r
}
