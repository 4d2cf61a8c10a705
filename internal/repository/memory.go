package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/repository/models"
	"github.com/google/uuid"
)

type memState struct {
	users   map[string]models.User
	devices map[string]models.Device
	tokens  map[string]models.RefreshToken // keyed by token string
	seq     map[string]int64               // insertion order of devices and tokens
	next    int64
}

func newMemState() *memState {
	return &memState{
		users:   make(map[string]models.User),
		devices: make(map[string]models.Device),
		tokens:  make(map[string]models.RefreshToken),
		seq:     make(map[string]int64),
	}
}

func (s *memState) clone() memState {
	c := *newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.devices {
		c.devices[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	c.next = s.next
	return c
}

type memQueries struct {
	st  *memState
	mu  *sync.Mutex // nil inside WithTx, where the store lock is already held
	now func() time.Time
}

func (q *memQueries) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

type memoryStore struct {
	*memQueries
	mu sync.Mutex
}

// NewMemoryStore returns a Store kept in process memory. Transactions are serialized
// and rolled back by restoring a snapshot.
func NewMemoryStore() models.Store {
	s := &memoryStore{}
	s.memQueries = &memQueries{st: newMemState(), mu: &s.mu, now: time.Now}
	return s
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(q models.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&memQueries{st: s.st, now: s.now}); err != nil {
		*s.st = snapshot
		return err
	}
	return ctx.Err()
}

func (s *memoryStore) RunMigrations(string) error { return nil }
func (s *memoryStore) Close() error                { return nil }

func (q *memQueries) CreateUser(ctx context.Context, user *models.User) error {
	defer q.lock()()

	for _, u := range q.st.users {
		if u.Email == user.Email {
			return fmt.Errorf("failed to create user: %w: users_email_key", ErrDuplicate)
		}
	}
	now := q.now()
	user.ID = uuid.NewString()
	user.TokenVersion = 0
	user.CreatedAt, user.UpdatedAt = now, now
	q.st.users[user.ID] = *user
	return nil
}

func (q *memQueries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer q.lock()()

	u, ok := q.st.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user %s: %w", id, ErrNotFound)
	}
	return &u, nil
}

func (q *memQueries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer q.lock()()

	for _, u := range q.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("failed to get user by email: %w", ErrNotFound)
}

func (q *memQueries) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	defer q.lock()()

	u, ok := q.st.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to update user %s: %w", id, ErrNotFound)
	}
	if upd.Email != nil {
		for _, other := range q.st.users {
			if other.ID != id && other.Email == *upd.Email {
				return nil, fmt.Errorf("failed to update user %s: %w: users_email_key", id, ErrDuplicate)
			}
		}
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.AvatarKey != nil {
		key := *upd.AvatarKey
		u.AvatarKey = &key
	}
	u.UpdatedAt = q.now()
	q.st.users[id] = u
	return &u, nil
}

func (q *memQueries) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	defer q.lock()()

	u, ok := q.st.users[id]
	if !ok {
		return fmt.Errorf("failed to update password: %w", ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = q.now()
	q.st.users[id] = u
	return nil
}

func (q *memQueries) IncrementTokenVersion(ctx context.Context, id string) error {
	defer q.lock()()

	u, ok := q.st.users[id]
	if !ok {
		return fmt.Errorf("failed to increment token version: %w", ErrNotFound)
	}
	u.TokenVersion++
	u.UpdatedAt = q.now()
	q.st.users[id] = u
	return nil
}

func (q *memQueries) CreateDevice(ctx context.Context, device *models.Device) error {
	defer q.lock()()

	if _, ok := q.st.users[device.UserID]; !ok {
		return fmt.Errorf("failed to create device: user %s: %w", device.UserID, ErrNotFound)
	}
	now := q.now()
	device.ID = uuid.NewString()
	device.LastUsedAt, device.CreatedAt = now, now
	q.st.devices[device.ID] = *device
	q.st.order(device.ID)
	return nil
}

func (q *memQueries) TouchDevice(ctx context.Context, id string, at time.Time) error {
	defer q.lock()()

	d, ok := q.st.devices[id]
	if !ok {
		return fmt.Errorf("failed to touch device: %w", ErrNotFound)
	}
	d.LastUsedAt = at
	q.st.devices[id] = d
	return nil
}

func (q *memQueries) GetActiveDevice(ctx context.Context, userID, deviceID string) (*models.Device, error) {
	defer q.lock()()

	d, ok := q.st.devices[deviceID]
	if !ok || d.UserID != userID || !q.st.hasValidToken(deviceID) {
		return nil, fmt.Errorf("failed to get active device %s: %w", deviceID, ErrNotFound)
	}
	return &d, nil
}

func (q *memQueries) ListActiveDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	defer q.lock()()

	devices := make([]*models.Device, 0)
	for _, d := range q.st.devices {
		if d.UserID == userID && q.st.hasValidToken(d.ID) {
			d := d
			devices = append(devices, &d)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		if !devices[i].LastUsedAt.Equal(devices[j].LastUsedAt) {
			return devices[i].LastUsedAt.After(devices[j].LastUsedAt)
		}
		return q.st.seq[devices[i].ID] > q.st.seq[devices[j].ID]
	})
	return devices, nil
}

func (q *memQueries) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	defer q.lock()()

	if _, ok := q.st.tokens[token.Token]; ok {
		return fmt.Errorf("failed to create refresh token: %w: refresh_tokens_token_key", ErrDuplicate)
	}
	token.ID = uuid.NewString()
	token.IsValid = true
	token.CreatedAt = q.now()
	q.st.tokens[token.Token] = *token
	q.st.order(token.Token)
	return nil
}

func (q *memQueries) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	defer q.lock()()

	rt, ok := q.st.tokens[token]
	if !ok {
		return nil, fmt.Errorf("failed to get refresh token: %w", ErrNotFound)
	}
	return &rt, nil
}

// GetRefreshTokenForUpdate needs no row lock here: WithTx already serializes writers.
func (q *memQueries) GetRefreshTokenForUpdate(ctx context.Context, token string) (*models.RefreshToken, error) {
	return q.GetRefreshToken(ctx, token)
}

func (q *memQueries) GetValidRefreshTokenByDevice(ctx context.Context, userID, deviceID string) (*models.RefreshToken, error) {
	defer q.lock()()

	var (
		found *models.RefreshToken
		best  int64 = -1
	)
	for k, rt := range q.st.tokens {
		if rt.UserID == userID && rt.DeviceID == deviceID && rt.IsValid && q.st.seq[k] > best {
			rt := rt
			found, best = &rt, q.st.seq[k]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", ErrNotFound)
	}
	return found, nil
}

func (q *memQueries) InvalidateRefreshToken(ctx context.Context, token string) error {
	defer q.lock()()

	if rt, ok := q.st.tokens[token]; ok {
		rt.IsValid = false
		q.st.tokens[token] = rt
	}
	return nil
}

func (q *memQueries) InvalidateDeviceRefreshTokens(ctx context.Context, userID, deviceID string) (int64, error) {
	defer q.lock()()
	return q.st.invalidate(func(rt models.RefreshToken) bool {
		return rt.UserID == userID && rt.DeviceID == deviceID
	}), nil
}

func (q *memQueries) InvalidateUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	defer q.lock()()
	return q.st.invalidate(func(rt models.RefreshToken) bool {
		return rt.UserID == userID
	}), nil
}

func (q *memQueries) InvalidateUserRefreshTokensExcept(ctx context.Context, userID, keepDeviceID string) (int64, error) {
	defer q.lock()()
	return q.st.invalidate(func(rt models.RefreshToken) bool {
		return rt.UserID == userID && rt.DeviceID != keepDeviceID
	}), nil
}

func (s *memState) order(key string) {
	s.next++
	s.seq[key] = s.next
}

func (s *memState) hasValidToken(deviceID string) bool {
	for _, rt := range s.tokens {
		if rt.DeviceID == deviceID && rt.IsValid {
			return true
		}
	}
	return false
}

func (s *memState) invalidate(match func(models.RefreshToken) bool) int64 {
	var n int64
	for k, rt := range s.tokens {
		if rt.IsValid && match(rt) {
			rt.IsValid = false
			s.tokens[k] = rt
			n++
		}
	}
	return n
}
