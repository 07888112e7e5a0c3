package individuals

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
	List(ctx context.Context, filters shared.ListFilters) ([]Individual, int, error)
	Get(ctx context.Context, id int64) (Individual, error)
	Create(ctx context.Context, individual Individual) (Individual, error)
	Update(ctx context.Context, id int64, individual Individual) error
	Delete(ctx context.Context, id int64) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	LinkUser(ctx context.Context, id, userID int64) error
	Search(ctx context.Context, query string, limit int) ([]Individual, error)
	Statistics(ctx context.Context) (Statistics, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const individualColumns = `id, user_id, first_name, last_name, email, phone, document_type, document_number, hire_date, is_verified, is_active, created_at, updated_at`

func scanIndividual(row pgx.Row) (Individual, error) {
	var i Individual
	err := row.Scan(&i.ID, &i.UserID, &i.FirstName, &i.LastName, &i.Email, &i.Phone,
		&i.DocumentType, &i.DocumentNumber, &i.HireDate, &i.IsVerified, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func collectIndividuals(rows pgx.Rows) ([]Individual, error) {
	var individuals []Individual
	for rows.Next() {
		var i Individual
		if err := rows.Scan(&i.ID, &i.UserID, &i.FirstName, &i.LastName, &i.Email, &i.Phone,
			&i.DocumentType, &i.DocumentNumber, &i.HireDate, &i.IsVerified, &i.IsActive, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		individuals = append(individuals, i)
	}
	return individuals, rows.Err()
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Individual, int, error) {
	where := ""
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		p := `$` + strconv.Itoa(argCount)
		where += ` AND (first_name ILIKE ` + p + ` OR last_name ILIKE ` + p + ` OR document_number ILIKE ` + p + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM individuals WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + individualColumns + ` FROM individuals WHERE 1=1` + where + ` ORDER BY last_name, first_name`
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

	individuals, err := collectIndividuals(rows)
	return individuals, total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Individual, error) {
	i, err := scanIndividual(r.db.QueryRow(ctx, `SELECT `+individualColumns+` FROM individuals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Individual{}, shared.ErrNotFound
	}
	return i, err
}

func (r *repository) Create(ctx context.Context, individual Individual) (Individual, error) {
	query := `INSERT INTO individuals (user_id, first_name, last_name, email, phone, document_type, document_number, hire_date, is_verified, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10, $11) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, individual.UserID, individual.FirstName, individual.LastName,
		individual.Email, individual.Phone, individual.DocumentType, individual.DocumentNumber,
		individual.HireDate, individual.IsActive, now, now).Scan(&individual.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Individual{}, shared.ErrDuplicate
		}
		return Individual{}, err
	}
	individual.CreatedAt = now
	individual.UpdatedAt = now
	return individual, nil
}

func (r *repository) Update(ctx context.Context, id int64, individual Individual) error {
	query := `UPDATE individuals SET first_name = $1, last_name = $2, email = $3, phone = $4,
		document_type = $5, document_number = $6, hire_date = $7, is_active = $8, updated_at = $9
		WHERE id = $10`
	tag, err := r.db.Exec(ctx, query, individual.FirstName, individual.LastName, individual.Email,
		individual.Phone, individual.DocumentType, individual.DocumentNumber, individual.HireDate,
		individual.IsActive, time.Now(), id)
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
	tag, err := r.db.Exec(ctx, `DELETE FROM individuals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetVerified(ctx context.Context, id int64, verified bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE individuals SET is_verified = $2, updated_at = $3 WHERE id = $1`, id, verified, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) LinkUser(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE individuals SET user_id = $2, updated_at = $3 WHERE id = $1`, id, userID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Search(ctx context.Context, query string, limit int) ([]Individual, error) {
	const sql = `SELECT ` + individualColumns + ` FROM individuals
		WHERE is_active AND (first_name ILIKE $1 OR last_name ILIKE $1 OR email ILIKE $1 OR document_number ILIKE $1)
		ORDER BY last_name, first_name LIMIT $2`
	rows, err := r.db.Query(ctx, sql, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIndividuals(rows)
}

func (r *repository) Statistics(ctx context.Context) (Statistics, error) {
	var s Statistics
	err := r.db.QueryRow(ctx, `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE is_active),
		COUNT(*) FILTER (WHERE is_verified),
		COUNT(*) FILTER (WHERE user_id IS NOT NULL),
		COUNT(*) FILTER (WHERE NOT is_verified)
		FROM individuals`).Scan(&s.Total, &s.Active, &s.Verified, &s.WithLogin, &s.Unverified)
	return s, err
}
