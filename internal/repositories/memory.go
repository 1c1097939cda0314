package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/riskgate/internal/models"
)

// MemoryStore is an in-process Store for development and tests.
// Transactions are serialized and work on a copy that replaces the live
// state only on success. Inside InTx, use only the Tx passed to fn.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type memoryState struct {
	accounts   map[string]*models.Account
	attempts   []*models.LoginAttempt
	detections map[string]*models.AnomalyDetection
	delays     map[string]*models.DelayedLogin
	events     []*models.SecurityEvent
	decisions  map[string]*models.AdminDecision // keyed by detection id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		accounts:   map[string]*models.Account{},
		detections: map[string]*models.AnomalyDetection{},
		delays:     map[string]*models.DelayedLogin{},
		decisions:  map[string]*models.AdminDecision{},
	}}
}

// clone copies the containers. Stored values are never mutated in place,
// so sharing them between copies is safe.
func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		accounts:   make(map[string]*models.Account, len(s.accounts)),
		attempts:   append([]*models.LoginAttempt(nil), s.attempts...),
		detections: make(map[string]*models.AnomalyDetection, len(s.detections)),
		delays:     make(map[string]*models.DelayedLogin, len(s.delays)),
		events:     append([]*models.SecurityEvent(nil), s.events...),
		decisions:  make(map[string]*models.AdminDecision, len(s.decisions)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.detections {
		c.detections[k] = v
	}
	for k, v := range s.delays {
		c.delays[k] = v
	}
	for k, v := range s.decisions {
		c.decisions[k] = v
	}
	return c
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	working := m.state.clone()
	if err := fn(memView{st: working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *MemoryStore) view() memView { return memView{store: m} }

func (m *MemoryStore) Accounts() AccountStore { return memAccounts{m.view()} }
func (m *MemoryStore) Attempts() LoginAttemptStore { return memAttempts{m.view()} }
func (m *MemoryStore) Detections() DetectionStore { return memDetections{m.view()} }
func (m *MemoryStore) Delays() DelayStore { return memDelays{m.view()} }
func (m *MemoryStore) Events() SecurityEventStore { return memEvents{m.view()} }
func (m *MemoryStore) Decisions() AdminDecisionStore { return memDecisions{m.view()} }

// memView reaches either the live state under the store lock or a
// transaction's working copy.
type memView struct {
	store *MemoryStore
	st    *memoryState
}

func (v memView) with(fn func(st *memoryState) error) error {
	if v.store != nil {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
		return fn(v.store.state)
	}
	return fn(v.st)
}

func (v memView) Accounts() AccountStore { return memAccounts{v} }
func (v memView) Attempts() LoginAttemptStore { return memAttempts{v} }
func (v memView) Detections() DetectionStore { return memDetections{v} }
func (v memView) Delays() DelayStore { return memDelays{v} }
func (v memView) Events() SecurityEventStore { return memEvents{v} }
func (v memView) Decisions() AdminDecisionStore { return memDecisions{v} }

type memAccounts struct{ v memView }

func (r memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	var out *models.Account
	err := r.v.with(func(st *memoryState) error {
		a, ok := st.accounts[id]
		if !ok {
			return models.ErrNotFound
		}
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (r memAccounts) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	var out *models.Account
	err := r.v.with(func(st *memoryState) error {
		for _, a := range st.accounts {
			if a.Username == username {
				cp := *a
				out = &cp
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

// LockByID is GetByID: transactions already run one at a time.
func (r memAccounts) LockByID(ctx context.Context, id string) (*models.Account, error) {
	return r.GetByID(ctx, id)
}

func (r memAccounts) Create(_ context.Context, a *models.Account) error {
	return r.v.with(func(st *memoryState) error {
		for _, existing := range st.accounts {
			if existing.Username == a.Username {
				return models.ErrConflict
			}
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Status == "" {
			a.Status = models.AccountStatusActive
		}
		if a.Role == "" {
			a.Role = models.RoleUser
		}
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
		cp := *a
		st.accounts[a.ID] = &cp
		return nil
	})
}

func (r memAccounts) Update(_ context.Context, a *models.Account) error {
	return r.v.with(func(st *memoryState) error {
		if _, ok := st.accounts[a.ID]; !ok {
			return models.ErrNotFound
		}
		a.UpdatedAt = time.Now().UTC()
		cp := *a
		st.accounts[a.ID] = &cp
		return nil
	})
}

func (r memAccounts) ListMonitored(_ context.Context, limit int) ([]*models.Account, error) {
	var out []*models.Account
	err := r.v.with(func(st *memoryState) error {
		for _, a := range st.accounts {
			if a.Monitored {
				cp := *a
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return timeOrZero(out[i].MonitoringStart).After(timeOrZero(out[j].MonitoringStart))
	})
	return truncate(out, limit), err
}

func (r memAccounts) Stats(_ context.Context) (*models.AccountStats, error) {
	var s models.AccountStats
	err := r.v.with(func(st *memoryState) error {
		for _, a := range st.accounts {
			s.Total++
			switch a.Status {
			case models.AccountStatusActive:
				s.Active++
			case models.AccountStatusBlocked:
				s.Blocked++
			case models.AccountStatusDelayed:
				s.Delayed++
			}
			if a.Monitored {
				s.Monitored++
			}
		}
		return nil
	})
	return &s, err
}

type memAttempts struct{ v memView }

func (r memAttempts) Create(_ context.Context, a *models.LoginAttempt) error {
	return r.v.with(func(st *memoryState) error {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		cp := *a
		st.attempts = append(st.attempts, &cp)
		return nil
	})
}

func (r memAttempts) count(match func(*models.LoginAttempt) bool) (int, error) {
	n := 0
	err := r.v.with(func(st *memoryState) error {
		for _, a := range st.attempts {
			if match(a) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memAttempts) CountByOrigin(_ context.Context, accountID, ip string) (int, error) {
	return r.count(func(a *models.LoginAttempt) bool {
		return a.AccountID != nil && *a.AccountID == accountID && a.IPAddress == ip
	})
}

func (r memAttempts) CountByDeviceCombo(_ context.Context, accountID, device, os string) (int, error) {
	return r.count(func(a *models.LoginAttempt) bool {
		return a.AccountID != nil && *a.AccountID == accountID && a.Device == device && a.OS == os
	})
}

func (r memAttempts) CountFailuresSince(_ context.Context, accountID string, since time.Time) (int, error) {
	return r.count(func(a *models.LoginAttempt) bool {
		return a.AccountID != nil && *a.AccountID == accountID &&
			a.Status == models.AttemptFailed && !a.CreatedAt.Before(since)
	})
}

func (r memAttempts) ListTrainingFeatures(_ context.Context, limit int) ([]models.FeatureVector, error) {
	var out []models.FeatureVector
	err := r.v.with(func(st *memoryState) error {
		for i := len(st.attempts) - 1; i >= 0 && len(out) < limit; i-- {
			if st.attempts[i].Status == models.AttemptSuccess {
				out = append(out, st.attempts[i].Features)
			}
		}
		return nil
	})
	return out, err
}

type memDetections struct{ v memView }

func (r memDetections) Create(_ context.Context, d *models.AnomalyDetection) error {
	return r.v.with(func(st *memoryState) error {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		cp := *d
		st.detections[d.ID] = &cp
		return nil
	})
}

func (r memDetections) GetByID(_ context.Context, id string) (*models.AnomalyDetection, error) {
	var out *models.AnomalyDetection
	err := r.v.with(func(st *memoryState) error {
		d, ok := st.detections[id]
		if !ok {
			return models.ErrNotFound
		}
		cp := *d
		out = &cp
		return nil
	})
	return out, err
}

func (r memDetections) List(_ context.Context, status models.ReviewStatus, limit int) ([]*models.AnomalyDetection, error) {
	var out []*models.AnomalyDetection
	err := r.v.with(func(st *memoryState) error {
		for _, d := range st.detections {
			if status == "" || d.ReviewStatus == status {
				cp := *d
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), err
}

func (r memDetections) MarkReviewed(_ context.Context, id string) error {
	return r.v.with(func(st *memoryState) error {
		d, ok := st.detections[id]
		if !ok {
			return models.ErrNotFound
		}
		cp := *d
		cp.ReviewStatus = models.ReviewReviewed
		st.detections[id] = &cp
		return nil
	})
}

func (r memDetections) CountUnreviewed(_ context.Context) (int, error) {
	n := 0
	err := r.v.with(func(st *memoryState) error {
		for _, d := range st.detections {
			if d.ReviewStatus == models.ReviewUnreviewed {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memDetections) CountByTier(_ context.Context) (models.TierCounts, error) {
	counts := models.TierCounts{}
	err := r.v.with(func(st *memoryState) error {
		for _, d := range st.detections {
			counts[d.Tier]++
		}
		return nil
	})
	return counts, err
}

type memDelays struct{ v memView }

func (r memDelays) Create(_ context.Context, d *models.DelayedLogin) error {
	return r.v.with(func(st *memoryState) error {
		if d.Status == models.DelayWaiting {
			for _, existing := range st.delays {
				if existing.AccountID == d.AccountID && existing.Status == models.DelayWaiting {
					return models.ErrConflict
				}
			}
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		cp := *d
		st.delays[d.ID] = &cp
		return nil
	})
}

func (r memDelays) GetByID(_ context.Context, id string) (*models.DelayedLogin, error) {
	var out *models.DelayedLogin
	err := r.v.with(func(st *memoryState) error {
		d, ok := st.delays[id]
		if !ok {
			return models.ErrNotFound
		}
		cp := *d
		out = &cp
		return nil
	})
	return out, err
}

func (r memDelays) FindWaiting(_ context.Context, accountID string) (*models.DelayedLogin, error) {
	var out *models.DelayedLogin
	err := r.v.with(func(st *memoryState) error {
		for _, d := range st.delays {
			if d.AccountID == accountID && d.Status == models.DelayWaiting {
				cp := *d
				out = &cp
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r memDelays) Resolve(_ context.Context, id string, status models.DelayStatus, at time.Time) error {
	return r.v.with(func(st *memoryState) error {
		d, ok := st.delays[id]
		if !ok || d.Status != models.DelayWaiting {
			return models.ErrConflict
		}
		cp := *d
		cp.Status = status
		cp.ResolvedAt = &at
		st.delays[id] = &cp
		return nil
	})
}

func (r memDelays) Claim(_ context.Context, id string, at time.Time) error {
	return r.v.with(func(st *memoryState) error {
		d, ok := st.delays[id]
		if !ok || d.Status != models.DelayCompleted || !d.PasswordVerified || d.ClaimedAt != nil {
			return models.ErrConflict
		}
		cp := *d
		cp.ClaimedAt = &at
		st.delays[id] = &cp
		return nil
	})
}

func (r memDelays) CancelWaiting(_ context.Context, accountID string, at time.Time) (int, error) {
	n := 0
	err := r.v.with(func(st *memoryState) error {
		for id, d := range st.delays {
			if d.AccountID == accountID && d.Status == models.DelayWaiting {
				cp := *d
				cp.Status = models.DelayCancelled
				cp.ResolvedAt = &at
				st.delays[id] = &cp
				n++
			}
		}
		return nil
	})
	return n, err
}

type memEvents struct{ v memView }

func (r memEvents) Create(_ context.Context, e *models.SecurityEvent) error {
	return r.v.with(func(st *memoryState) error {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		cp := *e
		st.events = append(st.events, &cp)
		return nil
	})
}

func (r memEvents) ListByAccount(_ context.Context, accountID string, limit int) ([]*models.SecurityEvent, error) {
	var out []*models.SecurityEvent
	err := r.v.with(func(st *memoryState) error {
		for i := len(st.events) - 1; i >= 0; i-- {
			if st.events[i].AccountID == accountID {
				cp := *st.events[i]
				out = append(out, &cp)
			}
		}
		return nil
	})
	return truncate(out, limit), err
}

type memDecisions struct{ v memView }

func (r memDecisions) Create(_ context.Context, d *models.AdminDecision) error {
	return r.v.with(func(st *memoryState) error {
		if _, exists := st.decisions[d.DetectionID]; exists {
			return models.ErrConflict
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		cp := *d
		st.decisions[d.DetectionID] = &cp
		return nil
	})
}

func (r memDecisions) GetByDetection(_ context.Context, detectionID string) (*models.AdminDecision, error) {
	var out *models.AdminDecision
	err := r.v.with(func(st *memoryState) error {
		d, ok := st.decisions[detectionID]
		if !ok {
			return models.ErrNotFound
		}
		cp := *d
		out = &cp
		return nil
	})
	return out, err
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
