package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/db"
)

// Repository defines data access methods for vouchers.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Voucher, int, error)
	Get(ctx context.Context, id int64) (Voucher, error)
	GetByFolio(ctx context.Context, folio string) (Voucher, error)
	Create(ctx context.Context, voucher Voucher, folioPrefix string) (Voucher, error)
	Update(ctx context.Context, voucher Voucher) error
	SaveState(ctx context.Context, voucher Voucher) error
	InsertOutLog(ctx context.Context, log OutLog) (OutLog, error)
	InsertEntryLog(ctx context.Context, log EntryLog) (EntryLog, error)
	GetLogs(ctx context.Context, voucherID int64) (Logs, error)
	ListOverdue(ctx context.Context, today time.Time) ([]Voucher, error)
	Statistics(ctx context.Context, companyID *int64) (Statistics, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const voucherColumns = `id, public_id, folio, voucher_type, status, company_id, origin_branch_id, destination_branch_id,
	delivered_by_id, approved_by_id, received_by_id, with_return, estimated_return_date, actual_return_date,
	notes, internal_notes, created_by, updated_by, created_at, updated_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	var notes, internal *string
	err := row.Scan(&v.ID, &v.PublicID, &v.Folio, &v.Type, &v.Status, &v.CompanyID, &v.OriginBranchID,
		&v.DestinationBranchID, &v.DeliveredByID, &v.ApprovedByID, &v.ReceivedByID, &v.WithReturn,
		&v.EstimatedReturnDate, &v.ActualReturnDate, &notes, &internal, &v.CreatedBy, &v.UpdatedBy,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Voucher{}, err
	}
	if notes != nil {
		v.Notes = *notes
	}
	if internal != nil {
		v.InternalNotes = *internal
	}
	return v, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Voucher, int, error) {
	where := ""
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		p := `$` + strconv.Itoa(argCount)
		where += ` AND (folio ILIKE ` + p + ` OR notes ILIKE ` + p + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.CompanyID != nil {
		argCount++
		where += ` AND company_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CompanyID)
	}
	if filters.Status != nil {
		argCount++
		where += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, string(*filters.Status))
	}
	if filters.Type != nil {
		argCount++
		where += ` AND voucher_type = $` + strconv.Itoa(argCount)
		args = append(args, string(*filters.Type))
	}
	if filters.From != nil {
		argCount++
		where += ` AND created_at >= $` + strconv.Itoa(argCount)
		args = append(args, *filters.From)
	}
	if filters.To != nil {
		argCount++
		where += ` AND created_at < $` + strconv.Itoa(argCount)
		args = append(args, *filters.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE 1=1` + where + ` ORDER BY created_at DESC, id DESC`
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

	vouchers, err := collectVouchers(rows)
	if err != nil {
		return nil, 0, err
	}
	return vouchers, total, nil
}

func collectVouchers(rows pgx.Rows) ([]Voucher, error) {
	var vouchers []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Voucher, error) {
	v, err := scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	if err != nil {
		return Voucher{}, err
	}
	v.Details, err = r.details(ctx, v.ID)
	return v, err
}

func (r *repository) GetByFolio(ctx context.Context, folio string) (Voucher, error) {
	v, err := scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE folio = $1`, folio))
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	if err != nil {
		return Voucher{}, err
	}
	v.Details, err = r.details(ctx, v.ID)
	return v, err
}

const detailColumns = `id, voucher_id, product_id, line_number, item_name, item_description, quantity, unit, serial_number, notes`

func (r *repository) details(ctx context.Context, voucherID int64) ([]Detail, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+detailColumns+` FROM voucher_details WHERE voucher_id = $1 ORDER BY line_number`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []Detail
	for rows.Next() {
		var d Detail
		var desc, serial, notes *string
		if err := rows.Scan(&d.ID, &d.VoucherID, &d.ProductID, &d.LineNumber, &d.ItemName,
			&desc, &d.Quantity, &d.Unit, &serial, &notes); err != nil {
			return nil, err
		}
		if desc != nil {
			d.ItemDescription = *desc
		}
		if serial != nil {
			d.SerialNumber = *serial
		}
		if notes != nil {
			d.Notes = *notes
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Create inserts the voucher and its lines in one transaction. The
// folio sequence is read inside the transaction; the unique index on
// folio catches a concurrent insert of the same number and surfaces
// as ErrConflict so the caller can retry.
func (r *repository) Create(ctx context.Context, voucher Voucher, folioPrefix string) (Voucher, error) {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		year := time.Now().Year()
		var lastSeq int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(substring(folio FROM '[0-9]+$')::int), 0) FROM vouchers WHERE folio LIKE $1`,
			fmt.Sprintf("%s-%s-%d-%%", folioPrefix, voucher.Type.FolioCode(), year),
		).Scan(&lastSeq)
		if err != nil {
			return err
		}
		voucher.Folio = fmt.Sprintf("%s-%s-%d-%04d", folioPrefix, voucher.Type.FolioCode(), year, lastSeq+1)

		now := time.Now()
		voucher.CreatedAt = now
		voucher.UpdatedAt = now
		err = tx.QueryRow(ctx,
			`INSERT INTO vouchers (public_id, folio, voucher_type, status, company_id, origin_branch_id, destination_branch_id,
				delivered_by_id, with_return, estimated_return_date, notes, internal_notes, created_by, updated_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id`,
			voucher.PublicID, voucher.Folio, string(voucher.Type), string(voucher.Status), voucher.CompanyID,
			voucher.OriginBranchID, voucher.DestinationBranchID, voucher.DeliveredByID, voucher.WithReturn,
			voucher.EstimatedReturnDate, nullable(voucher.Notes), nullable(voucher.InternalNotes),
			voucher.CreatedBy, voucher.CreatedBy, now, now,
		).Scan(&voucher.ID)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("%w: folio %s already taken", ErrConflict, voucher.Folio)
			}
			return err
		}
		return insertDetails(ctx, tx, voucher.ID, voucher.Details)
	})
	if err != nil {
		return Voucher{}, err
	}
	for i := range voucher.Details {
		voucher.Details[i].VoucherID = voucher.ID
	}
	return voucher, nil
}

func insertDetails(ctx context.Context, tx pgx.Tx, voucherID int64, details []Detail) error {
	for i := range details {
		d := &details[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO voucher_details (voucher_id, product_id, line_number, item_name, item_description, quantity, unit, serial_number, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			voucherID, d.ProductID, d.LineNumber, d.ItemName, nullable(d.ItemDescription),
			d.Quantity, d.Unit, nullable(d.SerialNumber), nullable(d.Notes),
		).Scan(&d.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// Update rewrites the header and replaces every line.
func (r *repository) Update(ctx context.Context, voucher Voucher) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE vouchers SET origin_branch_id = $1, destination_branch_id = $2, delivered_by_id = $3,
				with_return = $4, estimated_return_date = $5, notes = $6, internal_notes = $7,
				updated_by = $8, updated_at = $9
			WHERE id = $10`,
			voucher.OriginBranchID, voucher.DestinationBranchID, voucher.DeliveredByID, voucher.WithReturn,
			voucher.EstimatedReturnDate, nullable(voucher.Notes), nullable(voucher.InternalNotes),
			voucher.UpdatedBy, time.Now(), voucher.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM voucher_details WHERE voucher_id = $1`, voucher.ID); err != nil {
			return err
		}
		return insertDetails(ctx, tx, voucher.ID, voucher.Details)
	})
}

// SaveState persists the lifecycle fields only.
func (r *repository) SaveState(ctx context.Context, voucher Voucher) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vouchers SET status = $1, approved_by_id = $2, received_by_id = $3, actual_return_date = $4,
			internal_notes = $5, updated_by = $6, updated_at = $7
		WHERE id = $8`,
		string(voucher.Status), voucher.ApprovedByID, voucher.ReceivedByID, voucher.ActualReturnDate,
		nullable(voucher.InternalNotes), voucher.UpdatedBy, time.Now(), voucher.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) InsertOutLog(ctx context.Context, log OutLog) (OutLog, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO out_logs (voucher_id, validation_status, scanned_by_id, observations, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		log.VoucherID, string(log.ValidationStatus), log.ScannedByID, nullable(log.Observations),
		log.CreatedBy, now).Scan(&log.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return OutLog{}, fmt.Errorf("%w: voucher already has an exit log", ErrConflict)
		}
		return OutLog{}, err
	}
	log.CreatedAt = now
	return log, nil
}

func (r *repository) InsertEntryLog(ctx context.Context, log EntryLog) (EntryLog, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO entry_logs (voucher_id, entry_status, received_by_id, missing_items, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		log.VoucherID, string(log.EntryStatus), log.ReceivedByID, nullable(log.MissingItems),
		nullable(log.Notes), log.CreatedBy, now).Scan(&log.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return EntryLog{}, fmt.Errorf("%w: voucher already has an entry log", ErrConflict)
		}
		return EntryLog{}, err
	}
	log.CreatedAt = now
	return log, nil
}

func (r *repository) GetLogs(ctx context.Context, voucherID int64) (Logs, error) {
	var logs Logs

	var out OutLog
	var observations *string
	err := r.db.QueryRow(ctx,
		`SELECT id, voucher_id, validation_status, scanned_by_id, observations, created_by, created_at
		FROM out_logs WHERE voucher_id = $1`, voucherID).
		Scan(&out.ID, &out.VoucherID, &out.ValidationStatus, &out.ScannedByID, &observations, &out.CreatedBy, &out.CreatedAt)
	switch {
	case err == nil:
		if observations != nil {
			out.Observations = *observations
		}
		logs.OutLog = &out
	case !errors.Is(err, pgx.ErrNoRows):
		return Logs{}, err
	}

	var entry EntryLog
	var missing, notes *string
	err = r.db.QueryRow(ctx,
		`SELECT id, voucher_id, entry_status, received_by_id, missing_items, notes, created_by, created_at
		FROM entry_logs WHERE voucher_id = $1`, voucherID).
		Scan(&entry.ID, &entry.VoucherID, &entry.EntryStatus, &entry.ReceivedByID, &missing, &notes, &entry.CreatedBy, &entry.CreatedAt)
	switch {
	case err == nil:
		if missing != nil {
			entry.MissingItems = *missing
		}
		if notes != nil {
			entry.Notes = *notes
		}
		logs.EntryLog = &entry
	case !errors.Is(err, pgx.ErrNoRows):
		return Logs{}, err
	}

	return logs, nil
}

// ListOverdue returns in-transit returnable vouchers whose estimated
// return date already passed.
func (r *repository) ListOverdue(ctx context.Context, today time.Time) ([]Voucher, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers
		WHERE status = $1 AND with_return AND estimated_return_date IS NOT NULL AND estimated_return_date < $2
		ORDER BY estimated_return_date`,
		string(StatusInTransit), today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVouchers(rows)
}

func (r *repository) Statistics(ctx context.Context, companyID *int64) (Statistics, error) {
	where := ""
	args := []interface{}{}
	if companyID != nil {
		where = ` WHERE company_id = $1`
		args = append(args, *companyID)
	}

	rows, err := r.db.Query(ctx,
		`SELECT status, voucher_type, COUNT(*) FROM vouchers`+where+` GROUP BY status, voucher_type`, args...)
	if err != nil {
		return Statistics{}, err
	}
	defer rows.Close()

	stats := Statistics{
		ByStatus: make(map[Status]int),
		ByType:   make(map[Type]int),
	}
	for rows.Next() {
		var status, vtype string
		var count int
		if err := rows.Scan(&status, &vtype, &count); err != nil {
			return Statistics{}, err
		}
		stats.Total += count
		stats.ByStatus[Status(status)] += count
		stats.ByType[Type(vtype)] += count
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, err
	}
	stats.PendingApproval = stats.ByStatus[StatusPending]
	stats.InTransit = stats.ByStatus[StatusInTransit]
	stats.Overdue = stats.ByStatus[StatusOverdue]
	return stats, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
