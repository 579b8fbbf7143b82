package recommendation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memoryRepository is an in-memory Repository used across the package tests.
type memoryRepository struct {
	mu sync.Mutex

	users        map[string]*User
	userOrder    []string
	interactions []*InteractionEvent
	connections  []*Connection
	recs         []*Recommendation
	signals      []*TrainingSignal

	nextID int64

	getUserErr      error
	listUsersErr    error
	interactionsErr error
	connectionsErr  error
	insertRecErr    func(rec *Recommendation) error
	signalErr       error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: map[string]*User{}}
}

func (m *memoryRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepository) addUser(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		m.userOrder = append(m.userOrder, u.ID)
	}
	m.users[u.ID] = u
}

func (m *memoryRepository) addInteraction(e *InteractionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().Add(time.Duration(e.ID) * time.Millisecond)
	}
	m.interactions = append(m.interactions, e)
}

func (m *memoryRepository) addConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.connections = append(m.connections, c)
}

func (m *memoryRepository) signalsOfType(signalType string) []*TrainingSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*TrainingSignal
	for _, s := range m.signals {
		if s.SignalType == signalType {
			out = append(out, s)
		}
	}
	return out
}

func (m *memoryRepository) activeRecommendations(userID string) []*Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Recommendation
	for _, r := range m.recs {
		if r.UserID == userID && r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

func (m *memoryRepository) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getUserErr != nil {
		return nil, m.getUserErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryRepository) ListOnboardedUsersExcluding(ctx context.Context, excludedIDs []string, limit int) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listUsersErr != nil {
		return nil, m.listUsersErr
	}
	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	var out []*User
	for _, uid := range m.userOrder {
		u := m.users[uid]
		if excluded[u.ID] || !u.OnboardingCompleted {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepository) ListRecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for i := len(m.interactions) - 1; i >= 0; i-- {
		e := m.interactions[i]
		if e.CreatedAt.Before(since) || seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		if len(out) < limit {
			out = append(out, e.UserID)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListInteractions(ctx context.Context, userID string, interactionType InteractionType, limit int) ([]*InteractionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interactionsErr != nil {
		return nil, m.interactionsErr
	}
	var out []*InteractionEvent
	for _, e := range m.interactions {
		if e.UserID != userID {
			continue
		}
		if interactionType != "" && e.InteractionType != interactionType {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepository) InsertInteraction(ctx context.Context, event *InteractionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interactionsErr != nil {
		return m.interactionsErr
	}
	event.ID = m.id()
	event.CreatedAt = time.Now()
	m.interactions = append(m.interactions, event)
	return nil
}

func (m *memoryRepository) FindReciprocalInteraction(ctx context.Context, userID, targetID string, types []InteractionType) (*InteractionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.interactions) - 1; i >= 0; i-- {
		e := m.interactions[i]
		if e.UserID != userID || e.TargetUserID == nil || *e.TargetUserID != targetID {
			continue
		}
		for _, t := range types {
			if e.InteractionType == t {
				return e, nil
			}
		}
	}
	return nil, nil
}

func (m *memoryRepository) ListEndedConnectionsInvolving(ctx context.Context, userID string, limit int) ([]*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectionsErr != nil {
		return nil, m.connectionsErr
	}
	var out []*Connection
	for _, c := range m.connections {
		if c.Status != ConnectionEnded || (c.UserID != userID && c.ConnectedUserID != userID) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepository) FindActiveRecommendation(ctx context.Context, userID, candidateID string) (*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.UserID == userID && r.RecommendedUserID == candidateID && r.IsActive {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryRepository) InsertRecommendation(ctx context.Context, rec *Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertRecErr != nil {
		if err := m.insertRecErr(rec); err != nil {
			return err
		}
	}
	now := time.Now()
	rec.ID = m.id()
	rec.IsActive = true
	rec.CreatedAt = now
	rec.UpdatedAt = now
	copied := *rec
	m.recs = append(m.recs, &copied)
	return nil
}

func (m *memoryRepository) UpdateRecommendationScore(ctx context.Context, rec *Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == rec.ID {
			r.ConfidenceScore = rec.ConfidenceScore
			r.ReasonCodes = append([]string(nil), rec.ReasonCodes...)
			r.Category = rec.Category
			r.ExpiresAt = rec.ExpiresAt
			r.UpdatedAt = time.Now()
			rec.UpdatedAt = r.UpdatedAt
			return nil
		}
	}
	return ErrRecommendationNotFound
}

func (m *memoryRepository) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, ErrRecommendationNotFound
}

func (m *memoryRepository) ListActiveRecommendations(ctx context.Context, userID string, limit int) ([]*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*Recommendation
	for _, r := range m.recs {
		if r.UserID != userID || !r.IsActive {
			continue
		}
		if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceScore > out[j].ConfidenceScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepository) UpdateRecommendationState(ctx context.Context, rec *Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == rec.ID {
			r.IsActive = rec.IsActive
			r.IsViewed = rec.IsViewed
			r.IsActedOn = rec.IsActedOn
			r.ActionTaken = rec.ActionTaken
			r.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrRecommendationNotFound
}

func (m *memoryRepository) MarkRecommendationActedOn(ctx context.Context, id int64, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID != id {
			continue
		}
		if r.IsActedOn {
			return ErrAlreadyActedOn
		}
		taken := action
		r.IsActive = false
		r.IsViewed = true
		r.IsActedOn = true
		r.ActionTaken = &taken
		r.UpdatedAt = time.Now()
		return nil
	}
	return ErrAlreadyActedOn
}

func (m *memoryRepository) DeactivateExpiredRecommendations(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var n int64
	for _, r := range m.recs {
		if r.IsActive && r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			r.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memoryRepository) InsertTrainingSignal(ctx context.Context, signal *TrainingSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signalErr != nil {
		return m.signalErr
	}
	signal.ID = m.id()
	signal.CreatedAt = time.Now()
	m.signals = append(m.signals, signal)
	return nil
}

// stubModel returns a canned reply and remembers the last prompt.
type stubModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	block  bool
	prompt string
	calls  int
}

func (s *stubModel) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompt = prompt
	s.calls++
	reply, err, block := s.reply, s.err, s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }

func testUser(id, lat, lon string) *User {
	u := &User{
		ID:                  id,
		DisplayName:         strPtr("User " + id),
		Photos:              []string{"https://cdn.example.com/" + id + ".jpg"},
		OnboardingCompleted: true,
	}
	if lat != "" {
		u.Latitude = strPtr(lat)
	}
	if lon != "" {
		u.Longitude = strPtr(lon)
	}
	return u
}
