package recommendation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

const defaultRecommendationTTL = 72 * time.Hour

// Persister writes scored candidates as durable recommendations, keeping at
// most one active row per (user, candidate) pair.
type Persister struct {
	repo   Repository
	logger *logger.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewPersister(repo Repository, log *logger.Logger, ttl time.Duration) *Persister {
	if ttl <= 0 {
		ttl = defaultRecommendationTTL
	}
	return &Persister{repo: repo, logger: log, ttl: ttl, now: time.Now}
}

// Persist updates the active recommendation for the pair if there is one,
// otherwise inserts a fresh active row. View and action state survive an update.
func (p *Persister) Persist(ctx context.Context, userID string, candidate CandidateScore) (*Recommendation, error) {
	expiresAt := p.now().Add(p.ttl)
	confidence := confidenceFromScore(candidate.Score)
	reasons := append([]string{}, candidate.Reasons...)

	existing, err := p.repo.FindActiveRecommendation(ctx, userID, candidate.CandidateUserID)
	if err != nil {
		return nil, fmt.Errorf("find active recommendation: %w", err)
	}

	if existing != nil {
		existing.ConfidenceScore = confidence
		existing.ReasonCodes = reasons
		existing.Category = candidate.Category
		existing.ExpiresAt = &expiresAt

		if err := p.repo.UpdateRecommendationScore(ctx, existing); err != nil {
			return nil, fmt.Errorf("update recommendation %d: %w", existing.ID, err)
		}
		return existing, nil
	}

	rec := &Recommendation{
		UserID:            userID,
		RecommendedUserID: candidate.CandidateUserID,
		ConfidenceScore:   confidence,
		ReasonCodes:       reasons,
		Category:          candidate.Category,
		IsActive:          true,
		ExpiresAt:         &expiresAt,
	}
	if err := p.repo.InsertRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert recommendation: %w", err)
	}

	p.logger.Debug("recommendation created", "user_id", userID, "candidate_id", candidate.CandidateUserID, "confidence", confidence)
	return rec, nil
}

func confidenceFromScore(score float64) int {
	return int(math.Round(score))
}
