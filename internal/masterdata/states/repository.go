package states

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]State, int, error)
	Get(ctx context.Context, id int64) (State, error)
	ByCountry(ctx context.Context, countryID int64) ([]State, error)
	Create(ctx context.Context, state State) (State, error)
	Update(ctx context.Context, id int64, state State) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const stateColumns = `id, name, code, country_id, is_active, created_at, updated_at`

func scanState(row pgx.Row) (State, error) {
	var s State
	err := row.Scan(&s.ID, &s.Name, &s.Code, &s.CountryID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]State, int, error) {
	where := ""
	args := []interface{}{}
	argCount := 0

	if filters.CountryID != nil {
		argCount++
		where += ` AND country_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CountryID)
	}
	if filters.Search != "" {
		argCount++
		p := `$` + strconv.Itoa(argCount)
		where += ` AND (name ILIKE ` + p + ` OR code ILIKE ` + p + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM states WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + stateColumns + ` FROM states WHERE 1=1` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var s State
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.CountryID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		states = append(states, s)
	}
	return states, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (State, error) {
	s, err := scanState(r.db.QueryRow(ctx, `SELECT `+stateColumns+` FROM states WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) ByCountry(ctx context.Context, countryID int64) ([]State, error) {
	rows, err := r.db.Query(ctx, `SELECT `+stateColumns+` FROM states WHERE country_id = $1 AND is_active = true ORDER BY name ASC`, countryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var s State
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.CountryID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

func (r *repository) Create(ctx context.Context, state State) (State, error) {
	query := `INSERT INTO states (name, code, country_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, state.Name, state.Code, state.CountryID, state.IsActive, now, now).Scan(&state.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return State{}, shared.ErrDuplicate
		}
		return State{}, err
	}
	state.CreatedAt = now
	state.UpdatedAt = now
	return state, nil
}

func (r *repository) Update(ctx context.Context, id int64, state State) error {
	query := `UPDATE states SET name = $1, code = $2, country_id = $3, is_active = $4, updated_at = $5 WHERE id = $6`
	tag, err := r.db.Exec(ctx, query, state.Name, state.Code, state.CountryID, state.IsActive, time.Now(), id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.ErrDuplicate
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM states WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "name":
		return "name " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
