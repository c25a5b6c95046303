package repository

import (
	"context"
	"sort"
	"sync"

	"love-sync-backend/internal/models"
)

// MemoryUserStore keeps users in process memory
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewMemoryUserStore creates an empty user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User)}
}

func (m *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	u.Token = ""
	m.users[u.ID] = &u
	return nil
}

func (m *MemoryUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryUserStore) GetByCode(_ context.Context, code string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Code == code {
			c := *u
			return &c, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *MemoryUserStore) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := m.GetByCode(ctx, code)
	return err == nil, nil
}

func (m *MemoryUserStore) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	if pushToken == nil {
		u.PushToken = nil
		return nil
	}
	v := *pushToken
	u.PushToken = &v
	return nil
}

func (m *MemoryUserStore) SetPaid(_ context.Context, paid bool, userIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		if u, ok := m.users[id]; ok {
			u.IsPaid = paid
		}
	}
	return nil
}

func (m *MemoryUserStore) ListPushTokens(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tokens []string
	for _, u := range m.users {
		if u.PushToken != nil && *u.PushToken != "" {
			tokens = append(tokens, *u.PushToken)
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}

// MemoryPairStore keeps pairs in process memory
type MemoryPairStore struct {
	mu    sync.RWMutex
	pairs map[string]*models.Pair
}

// NewMemoryPairStore creates an empty pair store
func NewMemoryPairStore() *MemoryPairStore {
	return &MemoryPairStore{pairs: make(map[string]*models.Pair)}
}

func (m *MemoryPairStore) Create(_ context.Context, pair *models.Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pairs {
		if p.PartnerOf(pair.UserAID) != "" || p.PartnerOf(pair.UserBID) != "" {
			return models.ErrAlreadyPaired
		}
	}
	c := *pair
	m.pairs[c.ID] = &c
	return nil
}

func (m *MemoryPairStore) GetByID(_ context.Context, id string) (*models.Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pairs[id]
	if !ok {
		return nil, models.ErrPairNotFound
	}
	c := *p
	return &c, nil
}

func (m *MemoryPairStore) GetByUserID(_ context.Context, userID string) (*models.Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pairs {
		if p.PartnerOf(userID) != "" {
			c := *p
			return &c, nil
		}
	}
	return nil, models.ErrPairNotFound
}

func (m *MemoryPairStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pairs[id]; !ok {
		return models.ErrPairNotFound
	}
	delete(m.pairs, id)
	return nil
}

func (m *MemoryPairStore) UserHasPair(ctx context.Context, userID string) (bool, error) {
	_, err := m.GetByUserID(ctx, userID)
	return err == nil, nil
}

// MemoryPhotoStore keeps photo records in process memory
type MemoryPhotoStore struct {
	mu     sync.RWMutex
	photos map[string]*models.Photo
}

// NewMemoryPhotoStore creates an empty photo store
func NewMemoryPhotoStore() *MemoryPhotoStore {
	return &MemoryPhotoStore{photos: make(map[string]*models.Photo)}
}

func (m *MemoryPhotoStore) Create(_ context.Context, photo *models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *photo
	m.photos[c.ID] = &c
	return nil
}

func (m *MemoryPhotoStore) GetByID(_ context.Context, id string) (*models.Photo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.photos[id]
	if !ok {
		return nil, models.ErrPhotoNotFound
	}
	c := *p
	return &c, nil
}

func (m *MemoryPhotoStore) GetByPairID(_ context.Context, pairID string, limit, offset int) ([]*models.Photo, int, error) {
	m.mu.RLock()
	var all []*models.Photo
	for _, p := range m.photos {
		if p.PairID == pairID {
			c := *p
			all = append(all, &c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].TakenAt.After(all[j].TakenAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// MemoryOrderStore keeps payment orders in process memory
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.PaymentOrder
}

// NewMemoryOrderStore creates an empty order store
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*models.PaymentOrder)}
}

func (m *MemoryOrderStore) Create(_ context.Context, order *models.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *order
	m.orders[c.ID] = &c
	return nil
}

func (m *MemoryOrderStore) GetByID(_ context.Context, id string) (*models.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (m *MemoryOrderStore) MarkPaid(_ context.Context, id, paymentID string) (*models.PaymentOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false, models.ErrOrderNotFound
	}
	applied := false
	if o.Status != models.OrderPaid {
		o.Status = models.OrderPaid
		pid := paymentID
		o.PaymentID = &pid
		applied = true
	}
	c := *o
	return &c, applied, nil
}

// MemorySessionStore keeps sessions in process memory. Updates to one id are serialized by a
// per-id mutex so a slow update never blocks unrelated sessions.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	locks    map[string]*sync.Mutex
}

// NewMemorySessionStore creates an empty session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (m *MemorySessionStore) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	m.locks[s.ID] = &sync.Mutex{}
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, bool, error) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	m.mu.Unlock()
	if !ok {
		return nil, false, models.ErrSessionNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	applied, err := fn(current)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return current, false, nil
	}

	m.mu.Lock()
	m.sessions[id] = current.Clone()
	m.mu.Unlock()
	return current, true, nil
}

// MemoryGameStore keeps memory games in process memory behind one mutex
type MemoryGameStore struct {
	mu    sync.Mutex
	games map[string]*models.MemoryGame
}

// NewMemoryGameStore creates an empty game store
func NewMemoryGameStore() *MemoryGameStore {
	return &MemoryGameStore{games: make(map[string]*models.MemoryGame)}
}

func (m *MemoryGameStore) Create(_ context.Context, g *models.MemoryGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *MemoryGameStore) Get(_ context.Context, id string) (*models.MemoryGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, models.ErrGameNotFound
	}
	return g.Clone(), nil
}

func (m *MemoryGameStore) Update(_ context.Context, id string, fn GameUpdateFunc) (*models.MemoryGame, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.games[id]
	if !ok {
		return nil, false, models.ErrGameNotFound
	}

	current := stored.Clone()
	applied, err := fn(current)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return current, false, nil
	}
	m.games[id] = current.Clone()
	return current, true, nil
}
