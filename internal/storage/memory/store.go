// Package memory is an in-process ledger store. It honours the same guards and
// uniqueness rules as the postgres store and is used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"escrow-marketplace/internal/models"
	"escrow-marketplace/internal/storage"

	"github.com/google/uuid"
)

type dataset struct {
	users         map[uuid.UUID]models.User
	jobs          map[uuid.UUID]models.Job
	applications  map[uuid.UUID]models.Application
	agreements    map[uuid.UUID]models.Agreement
	transactions  map[uuid.UUID]models.Transaction
	notifications map[uuid.UUID]models.Notification
	signing       []models.SigningRecord
}

func newDataset() *dataset {
	return &dataset{
		users:         map[uuid.UUID]models.User{},
		jobs:          map[uuid.UUID]models.Job{},
		applications:  map[uuid.UUID]models.Application{},
		agreements:    map[uuid.UUID]models.Agreement{},
		transactions:  map[uuid.UUID]models.Transaction{},
		notifications: map[uuid.UUID]models.Notification{},
	}
}

// clone copies every table. Rows are values and pointer fields are never mutated in place,
// so copying the maps is enough for a rollback snapshot.
func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.jobs {
		c.jobs[k] = v
	}
	for k, v := range d.applications {
		c.applications[k] = v
	}
	for k, v := range d.agreements {
		c.agreements[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.notifications {
		c.notifications[k] = v
	}
	c.signing = append(c.signing, d.signing...)
	return c
}

// Store implements storage.Store behind a single mutex.
type Store struct {
	mu   sync.Mutex
	data *dataset
	now  func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		data: newDataset(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ storage.Store = (*Store)(nil)

// Repos returns repositories that lock per call.
func (s *Store) Repos() storage.Repositories {
	return s.bind(false)
}

// InTx holds the store lock for the whole of fn and restores the previous
// snapshot if fn returns an error or ctx is done.
func (s *Store) InTx(ctx context.Context, fn func(storage.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(s.bind(true)); err != nil {
		s.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) bind(held bool) storage.Repositories {
	b := base{s: s, held: held}
	return storage.Repositories{
		Users:         &userRepo{b},
		Jobs:          &jobRepo{b},
		Applications:  &applicationRepo{b},
		Agreements:    &agreementRepo{b},
		Transactions:  &transactionRepo{b},
		Notifications: &notificationRepo{b},
		Signing:       &signingRepo{b},
	}
}

// base is shared by every repository. held is true inside InTx, where the lock is already taken.
type base struct {
	s    *Store
	held bool
}

func (b base) lock() func() {
	if b.held {
		return func() {}
	}
	b.s.mu.Lock()
	return b.s.mu.Unlock
}

func (b base) db() *dataset { return b.s.data }

func (b base) now() time.Time { return b.s.now() }

func timePtr(t time.Time) *time.Time { return &t }

func paginate[T any](rows []T, offset, limit int) []T {
	if offset > len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// --- Users ---

type userRepo struct{ base }

func (r *userRepo) GetOrCreateByAddress(ctx context.Context, address string, role models.UserRole) (*models.User, error) {
	defer r.lock()()
	now := r.now()
	for id, u := range r.db().users {
		if u.WalletAddress == address {
			u.LastSeenAt = now
			r.db().users[id] = u
			return &u, nil
		}
	}
	u := models.User{
		ID:            uuid.New(),
		WalletAddress: address,
		DisplayName:   models.DefaultDisplayName(address),
		Role:          role,
		CreatedAt:     now,
		LastSeenAt:    now,
	}
	r.db().users[u.ID] = u
	return &u, nil
}

func (r *userRepo) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	defer r.lock()()
	for _, u := range r.db().users {
		if u.WalletAddress == address {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer r.lock()()
	u, ok := r.db().users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

// --- Jobs ---

type jobRepo struct{ base }

func (r *jobRepo) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	defer r.lock()()
	j := *job
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if _, exists := r.db().jobs[j.ID]; exists {
		return nil, storage.ErrConflict
	}
	now := r.now()
	j.CreatedAt, j.UpdatedAt = now, now
	r.db().jobs[j.ID] = j
	return &j, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	defer r.lock()()
	j, ok := r.db().jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &j, nil
}

func (r *jobRepo) List(ctx context.Context, filter storage.JobFilter) ([]models.Job, error) {
	defer r.lock()()
	jobs := []models.Job{}
	for _, j := range r.db().jobs {
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.EmployerAddress != nil && j.EmployerAddress != *filter.EmployerAddress {
			continue
		}
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.After(jobs[b].CreatedAt) })
	return paginate(jobs, filter.Offset, filter.Limit), nil
}

// update applies fn when guard holds. A missing row is ErrNotFound, a failed guard ErrStaleState.
func (r *jobRepo) update(id uuid.UUID, guard func(models.Job) bool, fn func(*models.Job)) (*models.Job, error) {
	j, ok := r.db().jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !guard(j) {
		return nil, storage.ErrStaleState
	}
	fn(&j)
	j.UpdatedAt = r.now()
	r.db().jobs[id] = j
	return &j, nil
}

func (r *jobRepo) PrepareEscrow(ctx context.Context, id uuid.UUID, applicationID uuid.UUID) (*models.Job, error) {
	defer r.lock()()
	return r.update(id,
		func(j models.Job) bool { return j.EscrowContractID == nil && j.Status == models.JobStatusOpen },
		func(j *models.Job) { j.EscrowApplicationID = &applicationID },
	)
}

func (r *jobRepo) SetEscrowContract(ctx context.Context, id uuid.UUID, contractID string) (*models.Job, error) {
	defer r.lock()()
	return r.update(id,
		func(j models.Job) bool {
			return j.EscrowContractID == nil && j.EscrowApplicationID != nil && j.Status == models.JobStatusOpen
		},
		func(j *models.Job) { j.EscrowContractID = &contractID },
	)
}

func (r *jobRepo) MarkFunded(ctx context.Context, id uuid.UUID, fundingTxHash *string) (*models.Job, error) {
	defer r.lock()()
	return r.update(id,
		func(j models.Job) bool { return j.EscrowContractID != nil && j.Status == models.JobStatusOpen },
		func(j *models.Job) {
			j.Status = models.JobStatusFunded
			j.FundingTxHash = fundingTxHash
		},
	)
}

func (r *jobRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.JobStatus, to models.JobStatus) (*models.Job, error) {
	defer r.lock()()
	return r.update(id,
		func(j models.Job) bool {
			for _, s := range from {
				if j.Status == s {
					return true
				}
			}
			return false
		},
		func(j *models.Job) {
			j.Status = to
			if to == models.JobStatusCompleted {
				j.CompletedAt = timePtr(r.now())
			}
		},
	)
}

// --- Applications ---

type applicationRepo struct{ base }

func (r *applicationRepo) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	defer r.lock()()
	for _, existing := range r.db().applications {
		if existing.JobID == app.JobID && existing.FreelancerAddress == app.FreelancerAddress {
			return nil, storage.ErrConflict
		}
	}
	if _, ok := r.db().jobs[app.JobID]; !ok {
		return nil, storage.ErrConflict
	}
	a := *app
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.AppliedAt = r.now()
	r.db().applications[a.ID] = a
	return &a, nil
}

func (r *applicationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	defer r.lock()()
	a, ok := r.db().applications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (r *applicationRepo) GetByJobAndFreelancer(ctx context.Context, jobID uuid.UUID, freelancerAddress string) (*models.Application, error) {
	defer r.lock()()
	for _, a := range r.db().applications {
		if a.JobID == jobID && a.FreelancerAddress == freelancerAddress {
			return &a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *applicationRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error) {
	defer r.lock()()
	apps := []models.Application{}
	for _, a := range r.db().applications {
		if a.JobID == jobID {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].AppliedAt.Before(apps[j].AppliedAt) })
	return apps, nil
}

func setApplicationStatus(a *models.Application, to models.ApplicationStatus, now time.Time) {
	a.Status = to
	switch to {
	case models.ApplicationStatusAccepted:
		a.AcceptedAt = timePtr(now)
	case models.ApplicationStatusRejected:
		a.RejectedAt = timePtr(now)
	}
}

func (r *applicationRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from models.ApplicationStatus, to models.ApplicationStatus) (*models.Application, error) {
	defer r.lock()()
	a, ok := r.db().applications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if a.Status != from {
		return nil, storage.ErrStaleState
	}
	setApplicationStatus(&a, to, r.now())
	r.db().applications[id] = a
	return &a, nil
}

func (r *applicationRepo) RejectPendingSiblings(ctx context.Context, jobID uuid.UUID, keepID uuid.UUID) ([]models.Application, error) {
	defer r.lock()()
	rejected := []models.Application{}
	now := r.now()
	for id, a := range r.db().applications {
		if a.JobID != jobID || id == keepID || a.Status != models.ApplicationStatusPending {
			continue
		}
		setApplicationStatus(&a, models.ApplicationStatusRejected, now)
		r.db().applications[id] = a
		rejected = append(rejected, a)
	}
	return rejected, nil
}

// --- Agreements ---

type agreementRepo struct{ base }

func (r *agreementRepo) Create(ctx context.Context, agreement *models.Agreement) (*models.Agreement, error) {
	defer r.lock()()
	for _, existing := range r.db().agreements {
		if existing.JobID == agreement.JobID && existing.Status.IsOpen() {
			return nil, storage.ErrConflict
		}
	}
	a := *agreement
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.db().agreements[a.ID] = a
	return &a, nil
}

func (r *agreementRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	defer r.lock()()
	a, ok := r.db().agreements[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (r *agreementRepo) GetByJob(ctx context.Context, jobID uuid.UUID) (*models.Agreement, error) {
	defer r.lock()()
	var found *models.Agreement
	for _, a := range r.db().agreements {
		if a.JobID != jobID {
			continue
		}
		if a.Status.IsOpen() {
			return &a, nil
		}
		if found == nil || a.CreatedAt.After(found.CreatedAt) {
			candidate := a
			found = &candidate
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (r *agreementRepo) List(ctx context.Context, filter storage.AgreementFilter) ([]models.Agreement, error) {
	defer r.lock()()
	out := []models.Agreement{}
	for _, a := range r.db().agreements {
		if filter.EmployerAddress != nil && a.EmployerAddress != *filter.EmployerAddress {
			continue
		}
		if filter.FreelancerAddress != nil && a.FreelancerAddress != *filter.FreelancerAddress {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func statusIn(s models.AgreementStatus, from []models.AgreementStatus) bool {
	for _, f := range from {
		if s == f {
			return true
		}
	}
	return false
}

func (r *agreementRepo) update(id uuid.UUID, from []models.AgreementStatus, fn func(*models.Agreement)) (*models.Agreement, error) {
	a, ok := r.db().agreements[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !statusIn(a.Status, from) {
		return nil, storage.ErrStaleState
	}
	fn(&a)
	a.UpdatedAt = r.now()
	r.db().agreements[id] = a
	return &a, nil
}

func (r *agreementRepo) MarkDelivered(ctx context.Context, id uuid.UUID, deliveryURL string, deliveryNote *string) (*models.Agreement, error) {
	defer r.lock()()
	return r.update(id, []models.AgreementStatus{models.AgreementStatusActive}, func(a *models.Agreement) {
		a.Status = models.AgreementStatusWorkDelivered
		a.DeliveryURL = &deliveryURL
		a.DeliveryNote = deliveryNote
		a.DeliveredAt = timePtr(r.now())
	})
}

func (r *agreementRepo) ResetToActive(ctx context.Context, id uuid.UUID, from []models.AgreementStatus) (*models.Agreement, error) {
	defer r.lock()()
	if a, ok := r.db().agreements[id]; ok && a.FreelancerConfirmed {
		return nil, storage.ErrStaleState
	}
	return r.update(id, from, func(a *models.Agreement) {
		a.Status = models.AgreementStatusActive
		a.DeliveryURL = nil
		a.DeliveryNote = nil
		a.DeliveredAt = nil
		a.EmployerApproved = false
		a.EmployerApprovedAt = nil
	})
}

func (r *agreementRepo) MarkEmployerApproved(ctx context.Context, id uuid.UUID, from []models.AgreementStatus) (*models.Agreement, error) {
	defer r.lock()()
	return r.update(id, from, func(a *models.Agreement) {
		a.Status = models.AgreementStatusEmployerApproved
		a.EmployerApproved = true
		a.EmployerApprovedAt = timePtr(r.now())
	})
}

func (r *agreementRepo) MarkFreelancerConfirmed(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	defer r.lock()()
	return r.update(id, []models.AgreementStatus{models.AgreementStatusEmployerApproved}, func(a *models.Agreement) {
		if !a.FreelancerConfirmed {
			a.FreelancerConfirmed = true
			a.FreelancerConfirmedAt = timePtr(r.now())
		}
	})
}

func (r *agreementRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Agreement, error) {
	defer r.lock()()
	return r.update(id, []models.AgreementStatus{models.AgreementStatusEmployerApproved}, func(a *models.Agreement) {
		a.Status = models.AgreementStatusCompleted
		a.CompletedAt = timePtr(r.now())
	})
}

// --- Transactions ---

type transactionRepo struct{ base }

func (r *transactionRepo) Append(ctx context.Context, tx *models.Transaction) (*models.Transaction, bool, error) {
	defer r.lock()()
	for _, existing := range r.db().transactions {
		if existing.TxHash == tx.TxHash {
			return &existing, false, nil
		}
		if tx.AgreementID != nil && existing.AgreementID != nil &&
			*existing.AgreementID == *tx.AgreementID && existing.Type == tx.Type {
			return &existing, false, nil
		}
	}
	t := *tx
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = models.TransactionStatusConfirmed
	}
	now := r.now()
	t.CreatedAt = now
	if t.ConfirmedAt == nil {
		t.ConfirmedAt = timePtr(now)
	}
	r.db().transactions[t.ID] = t
	return &t, true, nil
}

func (r *transactionRepo) FindByAgreementAndType(ctx context.Context, agreementID uuid.UUID, txType models.TransactionType) (*models.Transaction, error) {
	defer r.lock()()
	for _, t := range r.db().transactions {
		if t.AgreementID != nil && *t.AgreementID == agreementID && t.Type == txType {
			return &t, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *transactionRepo) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]models.Transaction, error) {
	defer r.lock()()
	out := []models.Transaction{}
	for _, t := range r.db().transactions {
		if t.AgreementID != nil && *t.AgreementID == agreementID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Notifications ---

type notificationRepo struct{ base }

func (r *notificationRepo) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	defer r.lock()()
	c := *n
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.now()
	r.db().notifications[c.ID] = c
	return &c, nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	defer r.lock()()
	out := []models.Notification{}
	for _, n := range r.db().notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, 0, limit), nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	defer r.lock()()
	count := 0
	for _, n := range r.db().notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	defer r.lock()()
	n, ok := r.db().notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	n.Read = true
	r.db().notifications[id] = n
	return nil
}

// --- Signing audit ---

type signingRepo struct{ base }

func (r *signingRepo) Record(ctx context.Context, rec *models.SigningRecord) error {
	defer r.lock()()
	c := *rec
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.now()
	r.db().signing = append(r.db().signing, c)
	return nil
}

// SigningRecords returns a copy of the audit trail.
func (s *Store) SigningRecords() []models.SigningRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SigningRecord(nil), s.data.signing...)
}
