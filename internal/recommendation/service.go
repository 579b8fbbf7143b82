package recommendation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrGenerationInProgress   = errors.New("recommendation generation already in progress")
	ErrUnauthorized           = errors.New("unauthorized to perform this action")
	ErrInvalidAction          = errors.New("invalid recommendation action")
	ErrAlreadyActedOn         = errors.New("recommendation already acted on")
	ErrSelfInteraction        = errors.New("cannot interact with yourself")
)

const maxRecommendationsLimit = 100

// Swipe actions and the interaction each one records
var actionInteractions = map[string]InteractionType{
	ActionLiked:      InteractionLike,
	ActionPassed:     InteractionPass,
	ActionSuperLiked: InteractionSuperLike,
}

type Service interface {
	// Generation
	GenerateRecommendations(ctx context.Context, userID string) ([]*Recommendation, error)
	GetRecommendations(ctx context.Context, userID string, params *GetRecommendationsParams) ([]*Recommendation, error)

	// Recommendation state
	MarkViewed(ctx context.Context, userID string, recID int64) (*Recommendation, error)
	RecordAction(ctx context.Context, userID string, recID int64, dto *RecommendationActionDTO) (*ActionResult, error)

	// Interactions
	ProcessInteraction(ctx context.Context, userID string, dto *InteractionDTO) (*MatchResult, error)

	// Scheduled Jobs
	RegenerateActiveUsers(ctx context.Context) error
	CleanupExpiredRecommendations(ctx context.Context) error
}

type ServiceConfig struct {
	DefaultLimit     int
	ActiveUserWindow time.Duration
	RegenerateBatch  int
}

type service struct {
	repo         Repository
	engine       *Engine
	interactions *InteractionProcessor
	guard        GenerationGuard
	logger       *logger.Logger
	cfg          ServiceConfig
	now          func() time.Time
}

func NewService(repo Repository, engine *Engine, guard GenerationGuard, cfg ServiceConfig, log *logger.Logger) Service {
	if guard == nil {
		guard = NewNoopGuard()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultTopN
	}
	if cfg.ActiveUserWindow <= 0 {
		cfg.ActiveUserWindow = 24 * time.Hour
	}
	if cfg.RegenerateBatch <= 0 {
		cfg.RegenerateBatch = 200
	}

	return &service{
		repo:         repo,
		engine:       engine,
		interactions: NewInteractionProcessor(repo, engine.Signals(), log),
		guard:        guard,
		logger:       log,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *service) GenerateRecommendations(ctx context.Context, userID string) ([]*Recommendation, error) {
	release, err := s.guard.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.engine.GenerateRecommendations(ctx, userID)
}

func (s *service) GetRecommendations(ctx context.Context, userID string, params *GetRecommendationsParams) ([]*Recommendation, error) {
	limit := s.cfg.DefaultLimit
	if params != nil && params.Limit > 0 {
		limit = params.Limit
	}
	if limit > maxRecommendationsLimit {
		limit = maxRecommendationsLimit
	}

	return s.repo.ListActiveRecommendations(ctx, userID, limit)
}

func (s *service) MarkViewed(ctx context.Context, userID string, recID int64) (*Recommendation, error) {
	rec, err := s.ownedRecommendation(ctx, userID, recID)
	if err != nil {
		return nil, err
	}
	if rec.IsViewed {
		return rec, nil
	}

	rec.IsViewed = true
	if err := s.repo.UpdateRecommendationState(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordAction closes out a recommendation with the user's swipe and feeds the
// matching interaction through mutual-match detection.
func (s *service) RecordAction(ctx context.Context, userID string, recID int64, dto *RecommendationActionDTO) (*ActionResult, error) {
	interactionType, ok := actionInteractions[dto.Action]
	if !ok {
		return nil, ErrInvalidAction
	}

	rec, err := s.ownedRecommendation(ctx, userID, recID)
	if err != nil {
		return nil, err
	}
	if rec.IsActedOn {
		return nil, ErrAlreadyActedOn
	}

	// conditional on is_acted_on, so a concurrent swipe still gets ErrAlreadyActedOn
	if err := s.repo.MarkRecommendationActedOn(ctx, rec.ID, dto.Action); err != nil {
		return nil, err
	}
	action := dto.Action
	rec.IsViewed = true
	rec.IsActedOn = true
	rec.IsActive = false
	rec.ActionTaken = &action

	match, err := s.ProcessInteraction(ctx, userID, &InteractionDTO{
		Type:         interactionType,
		TargetUserID: rec.RecommendedUserID,
		Context:      "recommendation",
		Metadata:     map[string]interface{}{"recommendationId": rec.ID},
	})
	if err != nil {
		// The action itself is stored; only the derived interaction is lost
		s.logger.Warn("failed to record interaction for action", "user_id", userID, "recommendation_id", rec.ID, "error", err)
		return &ActionResult{Recommendation: rec}, nil
	}

	return &ActionResult{Recommendation: rec, MutualMatch: match.MutualMatch}, nil
}

func (s *service) ProcessInteraction(ctx context.Context, userID string, dto *InteractionDTO) (*MatchResult, error) {
	if dto.TargetUserID != "" && dto.TargetUserID == userID {
		return nil, ErrSelfInteraction
	}

	event := &InteractionEvent{
		UserID:          userID,
		InteractionType: dto.Type,
		Duration:        dto.Duration,
	}
	if dto.TargetUserID != "" {
		target := dto.TargetUserID
		event.TargetUserID = &target
	}
	if dto.LocationID != "" {
		location := dto.LocationID
		event.LocationID = &location
	}
	if dto.Context != "" {
		tag := dto.Context
		event.Context = &tag
	}
	if len(dto.Metadata) > 0 {
		metadata, err := json.Marshal(dto.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode interaction metadata: %w", err)
		}
		event.Metadata = metadata
	}

	return s.interactions.RecordInteraction(ctx, event)
}

// RegenerateActiveUsers refreshes recommendations for users who interacted
// recently. Per-user failures are logged and the batch continues.
func (s *service) RegenerateActiveUsers(ctx context.Context) error {
	since := s.now().Add(-s.cfg.ActiveUserWindow)
	userIDs, err := s.repo.ListRecentlyActiveUserIDs(ctx, since, s.cfg.RegenerateBatch)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	var generated, skipped, failed int
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := s.GenerateRecommendations(ctx, userID)
		switch {
		case err == nil:
			generated++
		case errors.Is(err, ErrGenerationInProgress):
			skipped++
		default:
			failed++
			s.logger.Warn("scheduled regeneration failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("scheduled regeneration finished", "users", len(userIDs), "generated", generated, "skipped", skipped, "failed", failed)
	return nil
}

func (s *service) CleanupExpiredRecommendations(ctx context.Context) error {
	n, err := s.repo.DeactivateExpiredRecommendations(ctx)
	if err != nil {
		return fmt.Errorf("deactivate expired recommendations: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired recommendations deactivated", "count", n)
	}
	return nil
}

func (s *service) ownedRecommendation(ctx context.Context, userID string, recID int64) (*Recommendation, error) {
	rec, err := s.repo.GetRecommendation(ctx, recID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrUnauthorized
	}
	return rec, nil
}
