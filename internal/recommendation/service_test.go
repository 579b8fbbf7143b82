package recommendation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

// heldGuard reports every listed user as already being generated.
type heldGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func (g *heldGuard) Acquire(ctx context.Context, userID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[userID] {
		return nil, ErrGenerationInProgress
	}
	return func() {
		g.mu.Lock()
		g.released++
		g.mu.Unlock()
	}, nil
}

func newTestService(repo *memoryRepository, guard GenerationGuard) Service {
	log := logger.NewNop()
	engine := NewEngine(repo, nil, EngineConfig{TopN: 20, RecommendationTTL: time.Hour}, log)
	return NewService(repo, engine, guard, ServiceConfig{DefaultLimit: 10, ActiveUserWindow: time.Hour, RegenerateBatch: 10}, log)
}

func seedNearbyPair(repo *memoryRepository) {
	repo.addUser(testUser("a", "34.05", "-118.24"))
	repo.addUser(testUser("b", "34.06", "-118.25"))
}

func TestServiceGenerateRespectsGuard(t *testing.T) {
	repo := newMemoryRepository()
	seedNearbyPair(repo)
	guard := &heldGuard{held: map[string]bool{"b": true}}
	svc := newTestService(repo, guard)

	recs, err := svc.GenerateRecommendations(context.Background(), "a")
	if err != nil {
		t.Fatalf("generate for a: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 recommendation, got %d", len(recs))
	}
	if guard.released != 1 {
		t.Errorf("expected guard release, got %d", guard.released)
	}

	if _, err := svc.GenerateRecommendations(context.Background(), "b"); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("err = %v, want ErrGenerationInProgress", err)
	}
}

func TestServiceGetRecommendations(t *testing.T) {
	repo := newMemoryRepository()
	seedNearbyPair(repo)
	svc := newTestService(repo, nil)

	if _, err := svc.GenerateRecommendations(context.Background(), "a"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	recs, err := svc.GetRecommendations(context.Background(), "a", &GetRecommendationsParams{Limit: 500})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(recs) != 1 || recs[0].RecommendedUserID != "b" {
		t.Errorf("unexpected recommendations %+v", recs)
	}

	none, err := svc.GetRecommendations(context.Background(), "b", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no recommendations for b, got %d", len(none))
	}
}

func TestServiceMarkViewed(t *testing.T) {
	repo := newMemoryRepository()
	seedNearbyPair(repo)
	svc := newTestService(repo, nil)

	recs, err := svc.GenerateRecommendations(context.Background(), "a")
	if err != nil || len(recs) != 1 {
		t.Fatalf("generate: %v (%d recs)", err, len(recs))
	}
	id := recs[0].ID

	if _, err := svc.MarkViewed(context.Background(), "b", id); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-owner err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.MarkViewed(context.Background(), "a", 9999); !errors.Is(err, ErrRecommendationNotFound) {
		t.Errorf("missing err = %v, want ErrRecommendationNotFound", err)
	}

	rec, err := svc.MarkViewed(context.Background(), "a", id)
	if err != nil {
		t.Fatalf("mark viewed: %v", err)
	}
	if !rec.IsViewed || !rec.IsActive {
		t.Errorf("expected viewed and still active, got %+v", rec)
	}
}

func TestServiceRecordActionDetectsMutualMatch(t *testing.T) {
	repo := newMemoryRepository()
	seedNearbyPair(repo)
	repo.addInteraction(&InteractionEvent{UserID: "b", TargetUserID: strPtr("a"), InteractionType: InteractionSuperLike})
	svc := newTestService(repo, nil)

	recs, err := svc.GenerateRecommendations(context.Background(), "a")
	if err != nil || len(recs) != 1 {
		t.Fatalf("generate: %v (%d recs)", err, len(recs))
	}

	result, err := svc.RecordAction(context.Background(), "a", recs[0].ID, &RecommendationActionDTO{Action: ActionLiked})
	if err != nil {
		t.Fatalf("record action: %v", err)
	}
	if !result.MutualMatch {
		t.Error("expected mutual match")
	}
	rec := result.Recommendation
	if rec.IsActive || !rec.IsActedOn || rec.ActionTaken == nil || *rec.ActionTaken != ActionLiked {
		t.Errorf("unexpected recommendation state %+v", rec)
	}
	if n := len(repo.activeRecommendations("a")); n != 0 {
		t.Errorf("acted-on recommendation must be inactive, %d active", n)
	}
	if n := len(repo.signalsOfType(SignalMutualMatch)); n != 1 {
		t.Errorf("expected 1 mutual match signal, got %d", n)
	}

	if _, err := svc.RecordAction(context.Background(), "a", recs[0].ID, &RecommendationActionDTO{Action: ActionPassed}); !errors.Is(err, ErrAlreadyActedOn) {
		t.Errorf("second action err = %v, want ErrAlreadyActedOn", err)
	}
}

// staleReadRepository always returns the first version of a recommendation it
// read, the view two concurrent swipes both get before either writes.
type staleReadRepository struct {
	*memoryRepository
	seen map[int64]*Recommendation
}

func (r *staleReadRepository) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	if rec, ok := r.seen[id]; ok {
		copied := *rec
		return &copied, nil
	}
	rec, err := r.memoryRepository.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	copied := *rec
	r.seen[id] = &copied
	return rec, nil
}

func TestServiceRecordActionOnlyOnceUnderStaleRead(t *testing.T) {
	mem := newMemoryRepository()
	seedNearbyPair(mem)
	repo := &staleReadRepository{memoryRepository: mem, seen: map[int64]*Recommendation{}}
	log := logger.NewNop()
	engine := NewEngine(repo, nil, EngineConfig{TopN: 20, RecommendationTTL: time.Hour}, log)
	svc := NewService(repo, engine, nil, ServiceConfig{DefaultLimit: 10, ActiveUserWindow: time.Hour, RegenerateBatch: 10}, log)

	recs, err := svc.GenerateRecommendations(context.Background(), "a")
	if err != nil || len(recs) != 1 {
		t.Fatalf("generate: %v (%d recs)", err, len(recs))
	}

	if _, err := svc.RecordAction(context.Background(), "a", recs[0].ID, &RecommendationActionDTO{Action: ActionLiked}); err != nil {
		t.Fatalf("first action: %v", err)
	}
	if _, err := svc.RecordAction(context.Background(), "a", recs[0].ID, &RecommendationActionDTO{Action: ActionSuperLiked}); !errors.Is(err, ErrAlreadyActedOn) {
		t.Fatalf("second action err = %v, want ErrAlreadyActedOn", err)
	}

	likes, _ := mem.ListInteractions(context.Background(), "a", InteractionLike, 10)
	superLikes, _ := mem.ListInteractions(context.Background(), "a", InteractionSuperLike, 10)
	if len(likes) != 1 || len(superLikes) != 0 {
		t.Errorf("expected exactly one recorded swipe, got %d likes and %d super likes", len(likes), len(superLikes))
	}
}

func TestServiceRecordActionRejectsUnknownAction(t *testing.T) {
	svc := newTestService(newMemoryRepository(), nil)
	if _, err := svc.RecordAction(context.Background(), "a", 1, &RecommendationActionDTO{Action: "maybe"}); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("err = %v, want ErrInvalidAction", err)
	}
}

func TestServiceProcessInteraction(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)

	duration := 12
	result, err := svc.ProcessInteraction(context.Background(), "a", &InteractionDTO{
		Type:       InteractionVisit,
		LocationID: "marker-7",
		Duration:   &duration,
		Context:    "map",
		Metadata:   map[string]interface{}{"source": "map"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Weight != 3 {
		t.Errorf("weight = %d, want 3", result.Weight)
	}
	event := result.Interaction
	if event.LocationID == nil || *event.LocationID != "marker-7" || event.TargetUserID != nil {
		t.Errorf("unexpected event %+v", event)
	}
	if string(event.Metadata) != `{"source":"map"}` {
		t.Errorf("metadata = %s", event.Metadata)
	}

	if _, err := svc.ProcessInteraction(context.Background(), "a", &InteractionDTO{Type: InteractionLike, TargetUserID: "a"}); !errors.Is(err, ErrSelfInteraction) {
		t.Errorf("self interaction err = %v, want ErrSelfInteraction", err)
	}
}

func TestServiceRegenerateActiveUsers(t *testing.T) {
	repo := newMemoryRepository()
	seedNearbyPair(repo)
	repo.addInteraction(&InteractionEvent{UserID: "a", InteractionType: InteractionView})
	repo.addInteraction(&InteractionEvent{UserID: "b", InteractionType: InteractionView})
	svc := newTestService(repo, &heldGuard{held: map[string]bool{"b": true}})

	if err := svc.RegenerateActiveUsers(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if n := len(repo.activeRecommendations("a")); n != 1 {
		t.Errorf("expected recommendations for a, got %d", n)
	}
	if n := len(repo.activeRecommendations("b")); n != 0 {
		t.Errorf("locked user b must be skipped, got %d", n)
	}
}

func TestServiceCleanupExpiredRecommendations(t *testing.T) {
	repo := newMemoryRepository()
	past := time.Now().Add(-time.Minute)
	repo.recs = append(repo.recs, &Recommendation{ID: 1, UserID: "a", RecommendedUserID: "b", IsActive: true, ExpiresAt: &past})
	svc := newTestService(repo, nil)

	if err := svc.CleanupExpiredRecommendations(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if repo.recs[0].IsActive {
		t.Error("expired recommendation still active")
	}
}
