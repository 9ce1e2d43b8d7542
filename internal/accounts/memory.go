package accounts

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/example/ragpipeline/internal/password"
)

// MemoryStore keeps accounts in process memory: a table keyed by id, unique
// indices for username and email, and the insertion order. Writes hold the
// lock exclusively; lookups share it.
type MemoryStore struct {
	hasher password.Hasher
	now    func() time.Time

	mu         sync.RWMutex
	byID       map[int64]*Account
	byUsername map[string]int64
	byEmail    map[string]int64
	order      []int64
	seq        int64
}

func NewMemoryStore(h password.Hasher, opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		hasher:     h,
		now:        o.now,
		byID:       map[int64]*Account{},
		byUsername: map[string]int64{},
		byEmail:    map[string]int64{},
	}
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

func (m *MemoryStore) GetByUsername(_ context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return m.byID[id].clone(), nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return m.byID[id].clone(), nil
}

func (m *MemoryStore) List(_ context.Context, offset, limit int) ([]*Account, error) {
	offset, limit = clampPage(offset, limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if offset >= len(m.order) {
		return []*Account{}, nil
	}
	if rest := len(m.order) - offset; limit > rest {
		limit = rest
	}
	out := make([]*Account, 0, limit)
	for _, id := range m.order[offset : offset+limit] {
		out = append(out, m.byID[id].clone())
	}
	return out, nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}

func (m *MemoryStore) Create(_ context.Context, in NewAccount) (*Account, error) {
	const op = "accounts.MemoryStore.Create"

	// Fail fast on duplicates before paying for the hash; the check is
	// repeated under the write lock.
	m.mu.RLock()
	err := m.checkUnique(0, in.Email, in.Username)
	m.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	acc, err := in.build(m.hasher, stamp(m.now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(0, acc.Email, acc.Username); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.seq++
	acc.ID = m.seq
	m.byID[acc.ID] = acc
	m.byEmail[acc.Email] = acc.ID
	m.byUsername[acc.Username] = acc.ID
	m.order = append(m.order, acc.ID)

	return acc.clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id int64, upd AccountUpdate) (*Account, error) {
	const op = "accounts.MemoryStore.Update"

	if err := upd.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var email, username string
	if upd.Email != nil {
		email = *upd.Email
	}
	if upd.Username != nil {
		username = *upd.Username
	}
	if err := m.checkUnique(id, email, username); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	delete(m.byEmail, acc.Email)
	delete(m.byUsername, acc.Username)
	upd.apply(acc)
	acc.UpdatedAt = stamp(m.now)
	m.byEmail[acc.Email] = id
	m.byUsername[acc.Username] = id

	return acc.clone(), nil
}

func (m *MemoryStore) UpdateLastLogin(_ context.Context, id int64) (*Account, error) {
	const op = "accounts.MemoryStore.UpdateLastLogin"

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	now := stamp(m.now)
	acc.LastLogin = &now
	return acc.clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	delete(m.byID, id)
	delete(m.byEmail, acc.Email)
	delete(m.byUsername, acc.Username)
	if i := slices.Index(m.order, id); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return true, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

// checkUnique reports a collision with an account other than self. Empty
// values are not checked. Callers hold the lock.
func (m *MemoryStore) checkUnique(self int64, email, username string) error {
	if email != "" {
		if id, ok := m.byEmail[email]; ok && id != self {
			return ErrDuplicateEmail
		}
	}
	if username != "" {
		if id, ok := m.byUsername[username]; ok && id != self {
			return ErrDuplicateUsername
		}
	}
	return nil
}
