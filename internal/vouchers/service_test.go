package vouchers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/companies"
	mdshared "github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

type mockRepo struct {
	vouchers  map[int64]Voucher
	outLogs   map[int64]OutLog
	entryLogs map[int64]EntryLog
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		vouchers:  make(map[int64]Voucher),
		outLogs:   make(map[int64]OutLog),
		entryLogs: make(map[int64]EntryLog),
		nextID:    1,
	}
}

func (m *mockRepo) List(_ context.Context, filters ListFilters) ([]Voucher, int, error) {
	var out []Voucher
	for _, v := range m.vouchers {
		if filters.Status != nil && v.Status != *filters.Status {
			continue
		}
		if filters.Type != nil && v.Type != *filters.Type {
			continue
		}
		if filters.CompanyID != nil && v.CompanyID != *filters.CompanyID {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (Voucher, error) {
	v, ok := m.vouchers[id]
	if !ok {
		return Voucher{}, ErrNotFound
	}
	return v, nil
}

func (m *mockRepo) GetByFolio(_ context.Context, folio string) (Voucher, error) {
	for _, v := range m.vouchers {
		if v.Folio == folio {
			return v, nil
		}
	}
	return Voucher{}, ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, voucher Voucher, folioPrefix string) (Voucher, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("%s-%s-%d-", folioPrefix, voucher.Type.FolioCode(), year)
	seq := 0
	for _, v := range m.vouchers {
		if strings.HasPrefix(v.Folio, prefix) {
			seq++
		}
	}
	voucher.Folio = fmt.Sprintf("%s%04d", prefix, seq+1)
	voucher.ID = m.nextID
	m.nextID++
	for i := range voucher.Details {
		voucher.Details[i].VoucherID = voucher.ID
	}
	voucher.CreatedAt = time.Now()
	voucher.UpdatedAt = voucher.CreatedAt
	m.vouchers[voucher.ID] = voucher
	return voucher, nil
}

func (m *mockRepo) Update(_ context.Context, voucher Voucher) error {
	if _, ok := m.vouchers[voucher.ID]; !ok {
		return ErrNotFound
	}
	m.vouchers[voucher.ID] = voucher
	return nil
}

func (m *mockRepo) SaveState(_ context.Context, voucher Voucher) error {
	stored, ok := m.vouchers[voucher.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = voucher.Status
	stored.ApprovedByID = voucher.ApprovedByID
	stored.ReceivedByID = voucher.ReceivedByID
	stored.ActualReturnDate = voucher.ActualReturnDate
	stored.InternalNotes = voucher.InternalNotes
	stored.UpdatedBy = voucher.UpdatedBy
	stored.UpdatedAt = time.Now()
	m.vouchers[voucher.ID] = stored
	return nil
}

func (m *mockRepo) InsertOutLog(_ context.Context, log OutLog) (OutLog, error) {
	if _, exists := m.outLogs[log.VoucherID]; exists {
		return OutLog{}, fmt.Errorf("%w: voucher already has an exit log", ErrConflict)
	}
	log.ID = m.nextID
	m.nextID++
	log.CreatedAt = time.Now()
	m.outLogs[log.VoucherID] = log
	return log, nil
}

func (m *mockRepo) InsertEntryLog(_ context.Context, log EntryLog) (EntryLog, error) {
	if _, exists := m.entryLogs[log.VoucherID]; exists {
		return EntryLog{}, fmt.Errorf("%w: voucher already has an entry log", ErrConflict)
	}
	log.ID = m.nextID
	m.nextID++
	log.CreatedAt = time.Now()
	m.entryLogs[log.VoucherID] = log
	return log, nil
}

func (m *mockRepo) GetLogs(_ context.Context, voucherID int64) (Logs, error) {
	var logs Logs
	if out, ok := m.outLogs[voucherID]; ok {
		logs.OutLog = &out
	}
	if entry, ok := m.entryLogs[voucherID]; ok {
		logs.EntryLog = &entry
	}
	return logs, nil
}

func (m *mockRepo) ListOverdue(_ context.Context, today time.Time) ([]Voucher, error) {
	var out []Voucher
	for _, v := range m.vouchers {
		if v.Status == StatusInTransit && v.WithReturn &&
			v.EstimatedReturnDate != nil && v.EstimatedReturnDate.Before(today) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockRepo) Statistics(_ context.Context, companyID *int64) (Statistics, error) {
	stats := Statistics{ByStatus: make(map[Status]int), ByType: make(map[Type]int)}
	for _, v := range m.vouchers {
		if companyID != nil && v.CompanyID != *companyID {
			continue
		}
		stats.Total++
		stats.ByStatus[v.Status]++
		stats.ByType[v.Type]++
	}
	stats.PendingApproval = stats.ByStatus[StatusPending]
	stats.InTransit = stats.ByStatus[StatusInTransit]
	stats.Overdue = stats.ByStatus[StatusOverdue]
	return stats, nil
}

var _ Repository = (*mockRepo)(nil)

type staticCompanies map[int64]companies.Company

func (s staticCompanies) Get(_ context.Context, id int64) (companies.Company, error) {
	c, ok := s[id]
	if !ok {
		return companies.Company{}, mdshared.ErrNotFound
	}
	return c, nil
}

type usageSpy struct {
	recorded [][]int64
}

func (u *usageSpy) RecordUsage(_ context.Context, ids []int64) error {
	u.recorded = append(u.recorded, ids)
	return nil
}

type fixture struct {
	repo  *mockRepo
	usage *usageSpy
	svc   *Service
}

func newFixture() fixture {
	repo := newMockRepo()
	usage := &usageSpy{}
	dir := staticCompanies{
		1: {ID: 1, Name: "Gatepass Industrial", TIN: "GPA990101XX0", TaxSystem: "601", IsActive: true},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		repo:  repo,
		usage: usage,
		svc:   NewService(repo, dir, usage, logger),
	}
}

func int64p(v int64) *int64 { return &v }

func exitForm() CreateForm {
	return CreateForm{
		Type:          "EXIT",
		CompanyID:     1,
		DeliveredByID: 3,
		Details: []DetailForm{
			{ProductID: int64p(11), ItemName: "Taladro industrial", Quantity: 1},
			{ItemName: "Extension 20m", Quantity: 2, Unit: "PZA"},
		},
	}
}

func returnableExitForm() CreateForm {
	form := exitForm()
	form.WithReturn = true
	due := time.Now().Add(72 * time.Hour)
	form.EstimatedReturnDate = &due
	return form
}

func allOK() []LineCheck {
	return []LineCheck{{LineNumber: 1, OK: true}, {LineNumber: 2, OK: true}}
}

func TestCreateAssignsFolioSequence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	year := time.Now().Year()

	first, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("GPA-SAL-%d-0001", year), first.Folio)
	require.Equal(t, StatusPending, first.Status)
	require.NotEmpty(t, first.PublicID)

	second, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("GPA-SAL-%d-0002", year), second.Folio)

	entry := exitForm()
	entry.Type = "ENTRY"
	third, err := f.svc.Create(ctx, entry, 1)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("GPA-ENT-%d-0001", year), third.Folio)
}

func TestCreateNumbersLinesAndDefaultsUnit(t *testing.T) {
	f := newFixture()

	voucher, err := f.svc.Create(context.Background(), exitForm(), 1)
	require.NoError(t, err)
	require.Len(t, voucher.Details, 2)
	require.Equal(t, 1, voucher.Details[0].LineNumber)
	require.Equal(t, 2, voucher.Details[1].LineNumber)
	require.Equal(t, "PZA", voucher.Details[0].Unit)
}

func TestCreateRecordsProductUsage(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), exitForm(), 1)
	require.NoError(t, err)
	require.Len(t, f.usage.recorded, 1)
	require.Equal(t, []int64{11}, f.usage.recorded[0])
}

func TestCreateUnknownCompany(t *testing.T) {
	f := newFixture()
	form := exitForm()
	form.CompanyID = 99

	_, err := f.svc.Create(context.Background(), form, 1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateWithReturnRequiresFutureDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	form := exitForm()
	form.WithReturn = true
	_, err := f.svc.Create(ctx, form, 1)
	require.ErrorIs(t, err, ErrValidation)

	past := time.Now().Add(-48 * time.Hour)
	form.EstimatedReturnDate = &past
	_, err = f.svc.Create(ctx, form, 1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestApproveOnlyFromPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, int64(5), *approved.ApprovedByID)

	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateOnlyWhilePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)

	update := UpdateForm{
		DeliveredByID: 4,
		Notes:         "changed carrier",
		Details:       []DetailForm{{ItemName: "Taladro industrial", Quantity: 1}},
	}
	updated, err := f.svc.Update(ctx, voucher.ID, update, 2)
	require.NoError(t, err)
	require.Equal(t, int64(4), updated.DeliveredByID)
	require.Len(t, updated.Details, 1)

	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, voucher.ID, update, 2)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCancelFromPendingAndApprovedOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, voucher.ID, CancelForm{Reason: "duplicate request"}, 2)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Contains(t, cancelled.InternalNotes, "[CANCELLED] duplicate request")

	_, err = f.svc.Cancel(ctx, voucher.ID, CancelForm{Reason: "again"}, 2)
	require.ErrorIs(t, err, ErrConflict)
}

func TestScanExitRequiresApproved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)

	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.ErrorIs(t, err, ErrConflict)
}

func TestScanExitWithoutReturnCloses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)

	scanned, err := f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, scanned.Status)

	logs, err := f.svc.Logs(ctx, voucher.ID)
	require.NoError(t, err)
	require.NotNil(t, logs.OutLog)
	require.Equal(t, ValidationApproved, logs.OutLog.ValidationStatus)
}

func TestScanExitWithReturnGoesInTransit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)

	scanned, err := f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, scanned.Status)
}

func TestScanExitMaterialLeavesDespiteObservations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)

	lines := []LineCheck{{LineNumber: 1, OK: true}, {LineNumber: 2, OK: false, Notes: "frayed cable"}}
	scanned, err := f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: lines}, 9)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, scanned.Status)

	logs, err := f.svc.Logs(ctx, voucher.ID)
	require.NoError(t, err)
	require.Equal(t, ValidationObservation, logs.OutLog.ValidationStatus)
	require.Contains(t, logs.OutLog.Observations, "frayed cable")
}

func TestScanExitOncePerVoucher(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)

	// Force the state back to make the uniqueness constraint the only
	// thing standing in the way.
	stored := f.repo.vouchers[voucher.ID]
	stored.Status = StatusApproved
	f.repo.vouchers[voucher.ID] = stored

	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.ErrorIs(t, err, ErrConflict)
}

func TestScanEntryCompleteCloses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)

	received, err := f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{ReceivedByID: 6, Lines: allOK()}, 2)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, received.Status)
	require.Equal(t, int64(6), *received.ReceivedByID)
	require.NotNil(t, received.ActualReturnDate)

	logs, err := f.svc.Logs(ctx, voucher.ID)
	require.NoError(t, err)
	require.Equal(t, EntryComplete, logs.EntryLog.EntryStatus)
}

func TestScanEntryIncompleteGoesOverdue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)

	lines := []LineCheck{{LineNumber: 1, OK: true}, {LineNumber: 2, OK: false, Notes: "one missing"}}
	received, err := f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{ReceivedByID: 6, Lines: lines}, 2)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, received.Status)

	logs, err := f.svc.Logs(ctx, voucher.ID)
	require.NoError(t, err)
	require.Equal(t, EntryIncomplete, logs.EntryLog.EntryStatus)
	require.Contains(t, logs.EntryLog.MissingItems, "one missing")
}

func TestScanEntryDamaged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)

	lines := []LineCheck{{LineNumber: 1, OK: false, Notes: "crushed"}, {LineNumber: 2, OK: true}}
	_, err = f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{ReceivedByID: 6, Lines: lines, Damaged: true}, 2)
	require.NoError(t, err)

	logs, err := f.svc.Logs(ctx, voucher.ID)
	require.NoError(t, err)
	require.Equal(t, EntryDamaged, logs.EntryLog.EntryStatus)
}

func TestScanEntryForPureEntryVoucher(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	form := exitForm()
	form.Type = "ENTRY"
	voucher, err := f.svc.Create(ctx, form, 1)
	require.NoError(t, err)

	// An entry voucher is received directly from PENDING.
	received, err := f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{ReceivedByID: 6, Lines: allOK()}, 2)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, received.Status)
	require.Nil(t, received.ActualReturnDate)
}

func TestScanEntryRejectsBadLineChecks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)

	_, err = f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{
		ReceivedByID: 6,
		Lines:        []LineCheck{{LineNumber: 1, OK: true}},
	}, 2)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{
		ReceivedByID: 6,
		Lines:        []LineCheck{{LineNumber: 1, OK: true}, {LineNumber: 1, OK: true}},
	}, 2)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ScanEntry(ctx, voucher.ID, ScanEntryForm{
		ReceivedByID: 6,
		Lines:        []LineCheck{{LineNumber: 1, OK: true}, {LineNumber: 2, OK: true}, {LineNumber: 7, OK: true}},
	}, 2)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCloseFromInTransit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)

	closed, err := f.svc.Close(ctx, voucher.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)

	_, err = f.svc.Close(ctx, voucher.ID, 1)
	require.ErrorIs(t, err, ErrConflict)
}

func TestCheckAndMarkOverdue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, returnableExitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, voucher.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)
	_, err = f.svc.ScanExit(ctx, voucher.ID, ScanExitForm{ScannedByID: 9, Lines: allOK()}, 9)
	require.NoError(t, err)

	// Backdate the promised return.
	stored := f.repo.vouchers[voucher.ID]
	past := time.Now().Add(-48 * time.Hour)
	stored.EstimatedReturnDate = &past
	f.repo.vouchers[voucher.ID] = stored

	count, err := f.svc.CheckAndMarkOverdue(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	flagged, err := f.svc.Get(ctx, voucher.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, flagged.Status)

	count, err = f.svc.CheckAndMarkOverdue(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestStatistics(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, first.ID, ApproveForm{ApprovedByID: 5}, 1)
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.PendingApproval)
	require.Equal(t, 1, stats.ByStatus[StatusApproved])
	require.Equal(t, 2, stats.ByType[TypeExit])
}

func TestGetByFolio(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	voucher, err := f.svc.Create(ctx, exitForm(), 1)
	require.NoError(t, err)

	found, err := f.svc.GetByFolio(ctx, "  "+strings.ToLower(voucher.Folio)+" ")
	require.NoError(t, err)
	require.Equal(t, voucher.ID, found.ID)

	_, err = f.svc.GetByFolio(ctx, "GPA-SAL-1999-0001")
	require.ErrorIs(t, err, ErrNotFound)
}
