package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
)

type fakeEnrollmentRepo struct {
	items            map[string]models.Enrollment
	details          map[string]models.EnrollmentDetail
	failLock         map[string]error
	locked           []string
	lifecycleUpdates int
	termsUpdates     int
	consumedUpdates  int
	openExists       bool
	listFilter       models.EnrollmentFilter
}

func newFakeEnrollmentRepo(items ...models.Enrollment) *fakeEnrollmentRepo {
	repo := &fakeEnrollmentRepo{items: map[string]models.Enrollment{}, details: map[string]models.EnrollmentDetail{}, failLock: map[string]error{}}
	for _, e := range items {
		repo.put(e)
	}
	return repo
}

func (f *fakeEnrollmentRepo) put(e models.Enrollment) {
	e.SyncActive()
	f.items[e.ID] = e
}

func (f *fakeEnrollmentRepo) get(id string) models.Enrollment {
	return f.items[id]
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	e, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f *fakeEnrollmentRepo) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	if err := f.failLock[id]; err != nil {
		return nil, err
	}
	f.locked = append(f.locked, id)
	return f.FindByID(ctx, exec, id)
}

func (f *fakeEnrollmentRepo) FindLatestForUpdate(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (*models.Enrollment, error) {
	var latest *models.Enrollment
	for _, e := range f.items {
		if e.StudentID != studentID || e.ClassID != classID {
			continue
		}
		candidate := e
		if latest == nil || candidate.CreatedAt.After(latest.CreatedAt) ||
			(candidate.CreatedAt.Equal(latest.CreatedAt) && candidate.ID > latest.ID) {
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	f.locked = append(f.locked, latest.ID)
	return latest, nil
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := f.details[id]
	detail.Enrollment = e
	return &detail, nil
}

func (f *fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.listFilter = filter
	var out []models.EnrollmentDetail
	for _, e := range f.items {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeEnrollmentRepo) ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (bool, error) {
	return f.openExists, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = fmt.Sprintf("enr-%d", len(f.items)+1)
	}
	if e.Status == "" {
		e.Status = models.EnrollmentStatusNew
	}
	e.SyncActive()
	f.put(*e)
	return nil
}

func (f *fakeEnrollmentRepo) UpdateLifecycle(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	e.SyncActive()
	f.lifecycleUpdates++
	stored := f.items[e.ID]
	stored.Status = e.Status
	stored.Active = e.Active
	stored.EndDate = e.EndDate
	f.items[e.ID] = stored
	return nil
}

func (f *fakeEnrollmentRepo) UpdateTerms(ctx context.Context, exec sqlx.ExtContext, e *models.Enrollment) error {
	f.termsUpdates++
	stored := f.items[e.ID]
	stored.StartDate = e.StartDate
	stored.EndDate = e.EndDate
	stored.FeePerSession = e.FeePerSession
	stored.SessionsPurchased = e.SessionsPurchased
	stored.AmountPaid = e.AmountPaid
	stored.Note = e.Note
	f.items[e.ID] = stored
	return nil
}

func (f *fakeEnrollmentRepo) UpdateSessionsConsumed(ctx context.Context, exec sqlx.ExtContext, id string, consumed int64) error {
	f.consumedUpdates++
	stored := f.items[id]
	stored.SessionsConsumed = consumed
	f.items[id] = stored
	return nil
}

func (f *fakeEnrollmentRepo) ListIDsByStatus(ctx context.Context, statuses []models.EnrollmentStatus) ([]string, error) {
	var ids []string
	for _, e := range f.items {
		for _, s := range statuses {
			if e.Status == s {
				ids = append(ids, e.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeEntryRepo struct {
	entries []models.BillingEntry
}

func (f *fakeEntryRepo) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.BillingEntry) error {
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("entry-%d", len(f.entries)+1)
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeEntryRepo) ExistsByType(ctx context.Context, exec sqlx.ExtContext, enrollmentID string, entryType models.BillingEntryType) (bool, error) {
	for _, e := range f.entries {
		if e.EnrollmentID == enrollmentID && e.EntryType == entryType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEntryRepo) SumSessions(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (int64, error) {
	var sum int64
	for _, e := range f.entries {
		if e.EnrollmentID == enrollmentID {
			sum += e.Sessions
		}
	}
	return sum, nil
}

func (f *fakeEntryRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.BillingEntry, error) {
	var out []models.BillingEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].EnrollmentID == enrollmentID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeEntryRepo) byEnrollment(id string) []models.BillingEntry {
	var out []models.BillingEntry
	for _, e := range f.entries {
		if e.EnrollmentID == id {
			out = append(out, e)
		}
	}
	return out
}

type fakeDiscountRepo struct {
	items map[string]models.Discount
}

func newFakeDiscountRepo(items ...models.Discount) *fakeDiscountRepo {
	repo := &fakeDiscountRepo{items: map[string]models.Discount{}}
	for _, d := range items {
		repo.items[d.ID] = d
	}
	return repo
}

func (f *fakeDiscountRepo) List(ctx context.Context, activeOnly bool, page, size int) ([]models.Discount, int, error) {
	var out []models.Discount
	for _, d := range f.items {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (f *fakeDiscountRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Discount, error) {
	d, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (f *fakeDiscountRepo) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	for _, d := range f.items {
		if d.Code == code {
			found := d
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDiscountRepo) Create(ctx context.Context, d *models.Discount) error {
	if d.ID == "" {
		d.ID = fmt.Sprintf("disc-%d", len(f.items)+1)
	}
	f.items[d.ID] = *d
	return nil
}

func (f *fakeDiscountRepo) Update(ctx context.Context, d *models.Discount) (bool, error) {
	if _, ok := f.items[d.ID]; !ok {
		return false, nil
	}
	f.items[d.ID] = *d
	return true, nil
}

func (f *fakeDiscountRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := f.items[id]; !ok {
		return false, nil
	}
	delete(f.items, id)
	return true, nil
}

type fakeAttendance struct {
	attended map[string]int64
	calls    int
}

func attendanceKey(studentID, classID string) string {
	return studentID + "|" + classID
}

func (f *fakeAttendance) set(studentID, classID string, count int64) {
	if f.attended == nil {
		f.attended = map[string]int64{}
	}
	f.attended[attendanceKey(studentID, classID)] = count
}

func (f *fakeAttendance) CountAttended(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) (int64, error) {
	f.calls++
	return f.attended[attendanceKey(studentID, classID)], nil
}

type fakeSchedules struct {
	weekdays map[string][]int
}

func (f *fakeSchedules) Weekdays(ctx context.Context, exec sqlx.ExtContext, classID string) ([]int, error) {
	return f.weekdays[classID], nil
}

type fakeLogRepo struct {
	logs []models.EnrollmentStatusLog
}

func (f *fakeLogRepo) Create(ctx context.Context, exec sqlx.ExtContext, log *models.EnrollmentStatusLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeLogRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.EnrollmentStatusLog, error) {
	var out []models.EnrollmentStatusLog
	for i := len(f.logs) - 1; i >= 0; i-- {
		if f.logs[i].EnrollmentID == enrollmentID {
			out = append(out, f.logs[i])
		}
	}
	return out, nil
}

type fakeBalanceCache struct {
	values   map[string]dto.EnrollmentBalance
	deleted  []string
	patterns []string
}

func (f *fakeBalanceCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, ok := f.values[key]
	if !ok {
		return false, nil
	}
	*dest.(*dto.EnrollmentBalance) = v
	return true, nil
}

func (f *fakeBalanceCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if f.values == nil {
		f.values = map[string]dto.EnrollmentBalance{}
	}
	f.values[key] = *value.(*dto.EnrollmentBalance)
	return nil
}

func (f *fakeBalanceCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeBalanceCache) Invalidate(ctx context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	f.values = nil
	return nil
}

// ledgerHarness wires the billing services over in-memory repositories and a sqlmock transaction source.
type ledgerHarness struct {
	t           *testing.T
	mock        sqlmock.Sqlmock
	db          *sqlx.DB
	enrollments *fakeEnrollmentRepo
	entries     *fakeEntryRepo
	discounts   *fakeDiscountRepo
	attendance  *fakeAttendance
	schedules   *fakeSchedules
	logs        *fakeLogRepo
	ledger      *LedgerService
	status      *StatusService
	transfer    *TransferService
	sync        *AttendanceSyncService
	purchase    *PurchaseService
	enroll      *EnrollmentService
	today       time.Time
}

var harnessToday = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newLedgerHarness(t *testing.T, enrollments ...models.Enrollment) *ledgerHarness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &ledgerHarness{
		t:           t,
		mock:        mock,
		db:          sqlx.NewDb(db, "postgres"),
		enrollments: newFakeEnrollmentRepo(enrollments...),
		entries:     &fakeEntryRepo{},
		discounts:   newFakeDiscountRepo(),
		attendance:  &fakeAttendance{},
		schedules:   &fakeSchedules{weekdays: map[string][]int{}},
		logs:        &fakeLogRepo{},
		today:       harnessToday,
	}
	clock := func() time.Time { return h.today }
	logger := zap.NewNop()

	h.ledger = NewLedgerService(h.enrollments, h.entries, h.discounts, h.attendance, h.db, nil, nil, logger, LedgerConfig{})
	h.ledger.now = clock
	h.status = NewStatusService(h.enrollments, h.logs, h.schedules, h.ledger, h.db, nil, nil, logger, nil)
	h.status.now = clock
	h.transfer = NewTransferService(h.enrollments, h.ledger, h.status, h.db, nil, logger)
	h.sync = NewAttendanceSyncService(h.enrollments, h.ledger, h.status, h.db, logger)
	h.purchase = NewPurchaseService(h.enrollments, h.ledger, h.status, h.db, nil, logger)
	h.enroll = NewEnrollmentService(h.enrollments, h.ledger, h.status, h.db, nil, logger)
	return h
}

func (h *ledgerHarness) expectCommit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *ledgerHarness) expectRollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func (h *ledgerHarness) verify() {
	require.NoError(h.t, h.mock.ExpectationsWereMet())
}

func dateRef(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
