package countries

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
	List(ctx context.Context, filters shared.ListFilters) ([]Country, int, error)
	Get(ctx context.Context, id int64) (Country, error)
	Create(ctx context.Context, country Country) (Country, error)
	Update(ctx context.Context, id int64, country Country) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const countryColumns = `id, name, iso_code_2, iso_code_3, numeric_code, phone_code, currency_code, currency_name, is_active, created_at, updated_at`

func scanCountry(row pgx.Row) (Country, error) {
	var c Country
	err := row.Scan(&c.ID, &c.Name, &c.ISOCode2, &c.ISOCode3, &c.NumericCode, &c.PhoneCode,
		&c.CurrencyCode, &c.CurrencyName, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Country, int, error) {
	where := ""
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		p := `$` + strconv.Itoa(argCount)
		where += ` AND (name ILIKE ` + p + ` OR iso_code_2 ILIKE ` + p + ` OR iso_code_3 ILIKE ` + p + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM countries WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + countryColumns + ` FROM countries WHERE 1=1` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var countries []Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Name, &c.ISOCode2, &c.ISOCode3, &c.NumericCode, &c.PhoneCode,
			&c.CurrencyCode, &c.CurrencyName, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		countries = append(countries, c)
	}
	return countries, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Country, error) {
	c, err := scanCountry(r.db.QueryRow(ctx, `SELECT `+countryColumns+` FROM countries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Country{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, country Country) (Country, error) {
	query := `INSERT INTO countries (name, iso_code_2, iso_code_3, numeric_code, phone_code, currency_code, currency_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, country.Name, country.ISOCode2, country.ISOCode3,
		country.NumericCode, country.PhoneCode, country.CurrencyCode, country.CurrencyName,
		country.IsActive, now, now).Scan(&country.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Country{}, shared.ErrDuplicate
		}
		return Country{}, err
	}
	country.CreatedAt = now
	country.UpdatedAt = now
	return country, nil
}

func (r *repository) Update(ctx context.Context, id int64, country Country) error {
	query := `UPDATE countries SET name = $1, iso_code_2 = $2, iso_code_3 = $3, numeric_code = $4,
		phone_code = $5, currency_code = $6, currency_name = $7, is_active = $8, updated_at = $9
		WHERE id = $10`
	tag, err := r.db.Exec(ctx, query, country.Name, country.ISOCode2, country.ISOCode3,
		country.NumericCode, country.PhoneCode, country.CurrencyCode, country.CurrencyName,
		country.IsActive, time.Now(), id)
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
	tag, err := r.db.Exec(ctx, `DELETE FROM countries WHERE id = $1`, id)
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
	case "iso_code_2":
		return "iso_code_2 " + dir
	case "name":
		return "name " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
