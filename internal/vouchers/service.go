package vouchers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/companies"
	mdshared "github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

// CompanySource resolves the owning company, whose TIN prefix seeds
// the folio. Implemented by the companies service.
type CompanySource interface {
	Get(ctx context.Context, id int64) (companies.Company, error)
}

// UsageRecorder bumps product usage counters for catalog-backed lines.
// Implemented by the products service.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, ids []int64) error
}

// Service handles voucher business logic.
type Service struct {
	repo      Repository
	companies CompanySource
	usage     UsageRecorder
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, companies CompanySource, usage UsageRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, companies: companies, usage: usage, logger: logger}
}

// Create registers a new voucher in PENDING state and assigns its
// folio. A concurrent folio collision is retried once.
func (s *Service) Create(ctx context.Context, form CreateForm, createdBy int64) (Voucher, error) {
	vtype, err := ParseType(form.Type)
	if err != nil {
		return Voucher{}, err
	}
	if err := validateReturn(form.WithReturn, form.EstimatedReturnDate); err != nil {
		return Voucher{}, err
	}

	company, err := s.companies.Get(ctx, form.CompanyID)
	if err != nil {
		if errors.Is(err, mdshared.ErrNotFound) {
			return Voucher{}, fmt.Errorf("%w: company %d not found", ErrValidation, form.CompanyID)
		}
		return Voucher{}, err
	}

	voucher := Voucher{
		PublicID:            uuid.NewString(),
		Type:                vtype,
		Status:              StatusPending,
		CompanyID:           form.CompanyID,
		OriginBranchID:      form.OriginBranchID,
		DestinationBranchID: form.DestinationBranchID,
		DeliveredByID:       form.DeliveredByID,
		WithReturn:          form.WithReturn,
		EstimatedReturnDate: form.EstimatedReturnDate,
		Notes:               form.Notes,
		InternalNotes:       form.InternalNotes,
		CreatedBy:           createdBy,
		UpdatedBy:           createdBy,
		Details:             detailsFromForms(form.Details),
	}

	created, err := s.repo.Create(ctx, voucher, company.FolioCode())
	if errors.Is(err, ErrConflict) {
		created, err = s.repo.Create(ctx, voucher, company.FolioCode())
	}
	if err != nil {
		return Voucher{}, err
	}

	s.recordUsage(ctx, created)
	return created, nil
}

func (s *Service) recordUsage(ctx context.Context, voucher Voucher) {
	if s.usage == nil {
		return
	}
	var ids []int64
	for _, d := range voucher.Details {
		if d.ProductID != nil {
			ids = append(ids, *d.ProductID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := s.usage.RecordUsage(ctx, ids); err != nil {
		s.logger.Warn("record product usage", slog.String("folio", voucher.Folio), slog.Any("error", err))
	}
}

// Get returns a voucher with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Voucher, error) {
	return s.repo.Get(ctx, id)
}

// GetByFolio returns a voucher looked up by folio.
func (s *Service) GetByFolio(ctx context.Context, folio string) (Voucher, error) {
	return s.repo.GetByFolio(ctx, strings.ToUpper(strings.TrimSpace(folio)))
}

// List returns vouchers matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Voucher, int, error) {
	return s.repo.List(ctx, filters)
}

// Logs returns the scan logs of a voucher.
func (s *Service) Logs(ctx context.Context, id int64) (Logs, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Logs{}, err
	}
	return s.repo.GetLogs(ctx, id)
}

// Update edits a voucher that is still pending approval.
func (s *Service) Update(ctx context.Context, id int64, form UpdateForm, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if voucher.Status != StatusPending {
		return Voucher{}, fmt.Errorf("%w: only pending vouchers can be edited, current status %s", ErrConflict, voucher.Status)
	}
	if err := validateReturn(form.WithReturn, form.EstimatedReturnDate); err != nil {
		return Voucher{}, err
	}

	voucher.OriginBranchID = form.OriginBranchID
	voucher.DestinationBranchID = form.DestinationBranchID
	voucher.DeliveredByID = form.DeliveredByID
	voucher.WithReturn = form.WithReturn
	voucher.EstimatedReturnDate = form.EstimatedReturnDate
	voucher.Notes = form.Notes
	voucher.InternalNotes = form.InternalNotes
	voucher.UpdatedBy = userID
	voucher.Details = detailsFromForms(form.Details)

	if err := s.repo.Update(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return s.repo.Get(ctx, id)
}

// Approve moves PENDING to APPROVED and records the approving
// signature.
func (s *Service) Approve(ctx context.Context, id int64, form ApproveForm, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if voucher.Status != StatusPending {
		return Voucher{}, fmt.Errorf("%w: cannot approve from status %s", ErrConflict, voucher.Status)
	}

	voucher.Status = StatusApproved
	voucher.ApprovedByID = &form.ApprovedByID
	voucher.UpdatedBy = userID
	if err := s.repo.SaveState(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// Cancel voids a voucher before material moves. Allowed from PENDING
// and APPROVED only.
func (s *Service) Cancel(ctx context.Context, id int64, form CancelForm, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if !voucher.Status.oneOf(StatusPending, StatusApproved) {
		return Voucher{}, fmt.Errorf("%w: cannot cancel from status %s", ErrConflict, voucher.Status)
	}

	voucher.Status = StatusCancelled
	voucher.InternalNotes = appendNote(voucher.InternalNotes, "[CANCELLED] "+form.Reason)
	voucher.UpdatedBy = userID
	if err := s.repo.SaveState(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// Close finishes a voucher manually. Allowed from PENDING, APPROVED,
// and IN_TRANSIT.
func (s *Service) Close(ctx context.Context, id int64, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if !voucher.Status.oneOf(StatusPending, StatusApproved, StatusInTransit) {
		return Voucher{}, fmt.Errorf("%w: cannot close from status %s", ErrConflict, voucher.Status)
	}

	voucher.Status = StatusClosed
	voucher.UpdatedBy = userID
	if err := s.repo.SaveState(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// ScanExit records the checker's gate validation. Material always
// leaves: discrepancies become observations, never a block. Requires
// APPROVED; a returnable voucher goes IN_TRANSIT, otherwise CLOSED.
func (s *Service) ScanExit(ctx context.Context, id int64, form ScanExitForm, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if voucher.Status != StatusApproved {
		return Voucher{}, fmt.Errorf("%w: exit scan requires an approved voucher, current status %s", ErrConflict, voucher.Status)
	}
	allOK, problems, err := checkLines(voucher.Details, form.Lines)
	if err != nil {
		return Voucher{}, err
	}

	log := OutLog{
		VoucherID:        voucher.ID,
		ValidationStatus: ValidationApproved,
		ScannedByID:      form.ScannedByID,
		Observations:     form.Observations,
		CreatedBy:        userID,
	}
	if !allOK {
		log.ValidationStatus = ValidationObservation
		log.Observations = appendNote(form.Observations, problems)
	}
	if _, err := s.repo.InsertOutLog(ctx, log); err != nil {
		return Voucher{}, err
	}

	if voucher.WithReturn {
		voucher.Status = StatusInTransit
	} else {
		voucher.Status = StatusClosed
	}
	voucher.UpdatedBy = userID
	if err := s.repo.SaveState(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// ScanEntry records the physical receipt line by line. Strict: the
// voucher only closes when every line checks out; anything missing or
// damaged parks it in OVERDUE with the problems on record.
func (s *Service) ScanEntry(ctx context.Context, id int64, form ScanEntryForm, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if !voucher.Status.oneOf(StatusPending, StatusApproved, StatusInTransit) {
		return Voucher{}, fmt.Errorf("%w: entry scan not allowed from status %s", ErrConflict, voucher.Status)
	}
	allOK, problems, err := checkLines(voucher.Details, form.Lines)
	if err != nil {
		return Voucher{}, err
	}

	log := EntryLog{
		VoucherID:    voucher.ID,
		EntryStatus:  EntryComplete,
		ReceivedByID: form.ReceivedByID,
		Notes:        form.Observations,
		CreatedBy:    userID,
	}
	if !allOK {
		log.EntryStatus = EntryIncomplete
		if form.Damaged {
			log.EntryStatus = EntryDamaged
		}
		log.MissingItems = problems
	}
	if _, err := s.repo.InsertEntryLog(ctx, log); err != nil {
		return Voucher{}, err
	}

	voucher.ReceivedByID = &form.ReceivedByID
	if voucher.WithReturn {
		today := time.Now()
		voucher.ActualReturnDate = &today
	}
	if allOK {
		voucher.Status = StatusClosed
	} else {
		voucher.Status = StatusOverdue
	}
	voucher.UpdatedBy = userID
	if err := s.repo.SaveState(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// MarkOverdue flags one in-transit voucher as overdue.
func (s *Service) MarkOverdue(ctx context.Context, id int64, userID int64) (Voucher, error) {
	voucher, err := s.repo.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if voucher.Status != StatusInTransit {
		return Voucher{}, fmt.Errorf("%w: only in-transit vouchers go overdue, current status %s", ErrConflict, voucher.Status)
	}

	voucher.Status = StatusOverdue
	voucher.UpdatedBy = userID
	if err := s.repo.SaveState(ctx, voucher); err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

// CheckAndMarkOverdue sweeps returnable in-transit vouchers whose
// estimated return date passed and marks them overdue. Returns the
// number of vouchers flagged. Safe to run repeatedly.
func (s *Service) CheckAndMarkOverdue(ctx context.Context, systemUserID int64) (int, error) {
	today := time.Now().Truncate(24 * time.Hour)
	candidates, err := s.repo.ListOverdue(ctx, today)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, voucher := range candidates {
		if _, err := s.MarkOverdue(ctx, voucher.ID, systemUserID); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// Statistics aggregates voucher counts, optionally scoped to one
// company.
func (s *Service) Statistics(ctx context.Context, companyID *int64) (Statistics, error) {
	return s.repo.Statistics(ctx, companyID)
}

func validateReturn(withReturn bool, estimated *time.Time) error {
	if !withReturn {
		return nil
	}
	if estimated == nil {
		return fmt.Errorf("%w: estimated_return_date is required when with_return is set", ErrValidation)
	}
	today := time.Now().Truncate(24 * time.Hour)
	if estimated.Before(today) {
		return fmt.Errorf("%w: estimated_return_date must not be in the past", ErrValidation)
	}
	return nil
}

// checkLines matches the submitted checks against the voucher lines.
// Every line must be checked exactly once. Returns whether all lines
// passed and a description of the failing ones.
func checkLines(details []Detail, checks []LineCheck) (bool, string, error) {
	if len(details) == 0 {
		return false, "", fmt.Errorf("%w: voucher has no detail lines", ErrValidation)
	}

	byLine := make(map[int]LineCheck, len(checks))
	for _, c := range checks {
		if _, dup := byLine[c.LineNumber]; dup {
			return false, "", fmt.Errorf("%w: duplicate check for line %d", ErrValidation, c.LineNumber)
		}
		byLine[c.LineNumber] = c
	}

	allOK := true
	var problems []string
	for _, d := range details {
		check, ok := byLine[d.LineNumber]
		if !ok {
			return false, "", fmt.Errorf("%w: missing check for line %d", ErrValidation, d.LineNumber)
		}
		delete(byLine, d.LineNumber)
		if !check.OK {
			allOK = false
			note := check.Notes
			if note == "" {
				note = "not specified"
			}
			problems = append(problems, fmt.Sprintf("line %d (%s): %s", d.LineNumber, d.ItemName, note))
		}
	}
	if len(byLine) > 0 {
		return false, "", fmt.Errorf("%w: checks reference unknown lines", ErrValidation)
	}
	return allOK, strings.Join(problems, "\n"), nil
}

func appendNote(existing, note string) string {
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
