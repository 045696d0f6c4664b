package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/parcelgrid/parcelgrid/internal/model"
)

const locationColumns = `id, location_type, name, address, district, latitude, longitude, phone, opening_hours, is_active, created_at, updated_at`

// SearchLocations returns active locations matching the filter, ordered
// by district then name. Type is matched exactly (the filter is expected
// to be normalized); district and name search are case-insensitive
// substring matches.
func (r *Repository) SearchLocations(ctx context.Context, filter model.LocationFilter) ([]*model.Location, error) {
	var (
		conditions = []string{"is_active"}
		args       []any
	)

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("location_type = $%d", len(args)))
	}
	if filter.District != "" {
		args = append(args, "%"+escapeLike(filter.District)+"%")
		conditions = append(conditions, fmt.Sprintf("district ILIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	query := `SELECT ` + locationColumns + `
		FROM locations
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY district, name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search locations: %w", err)
	}
	defer rows.Close()

	var locations []*model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(
			&l.ID,
			&l.LocationType,
			&l.Name,
			&l.Address,
			&l.District,
			&l.Latitude,
			&l.Longitude,
			&l.Phone,
			&l.OpeningHours,
			&l.IsActive,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}

	return locations, nil
}

// InsertLocation adds one location row. Used by the seeder.
func (r *Repository) InsertLocation(ctx context.Context, l *model.Location) error {
	query := `
		INSERT INTO locations (id, location_type, name, address, district, latitude, longitude, phone, opening_hours, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
	`

	_, err := r.pool.Exec(ctx, query,
		l.ID,
		l.LocationType,
		l.Name,
		l.Address,
		l.District,
		l.Latitude,
		l.Longitude,
		l.Phone,
		l.OpeningHours,
		l.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}

	return nil
}

// TruncateLocations clears the locations table. Used by the seeder
// before a full reload.
func (r *Repository) TruncateLocations(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `TRUNCATE locations`); err != nil {
		return fmt.Errorf("failed to truncate locations: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
