package recommendation

import (
	"context"
	"fmt"
	"math"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

const (
	proximityPoolSize = 50
	proximityRadiusKm = 100.0

	similarityLikeLimit = 100
	similarityPoolSize  = 100

	reunionConnectionLimit = 50
	reunionRadiusKm        = 50.0
)

const similarityReason = "Based on your preferences"

// Collectors produces candidate lists from the three evidence sources.
// Missing prerequisite data or a failed read yields an empty list, never an error.
type Collectors struct {
	repo   Repository
	logger *logger.Logger
}

func NewCollectors(repo Repository, log *logger.Logger) *Collectors {
	return &Collectors{repo: repo, logger: log}
}

// Proximity scores onboarded users within 100 km of the source user
func (c *Collectors) Proximity(ctx context.Context, user *User) []CandidateScore {
	lat, lon, ok := user.Coordinates()
	if !ok {
		return nil
	}

	pool, err := c.repo.ListOnboardedUsersExcluding(ctx, []string{user.ID}, proximityPoolSize)
	if err != nil {
		c.logger.Warn("proximity collector: failed to load candidates", "user_id", user.ID, "error", err)
		return nil
	}

	var scores []CandidateScore
	for _, candidate := range pool {
		candLat, candLon, ok := candidate.Coordinates()
		if !ok {
			continue
		}

		distance := DistanceKm(lat, lon, candLat, candLon)
		if distance > proximityRadiusKm {
			continue
		}

		scores = append(scores, CandidateScore{
			UserID:          user.ID,
			CandidateUserID: candidate.ID,
			Score:           math.Max(0, proximityRadiusKm-distance),
			Reasons:         []string{fmt.Sprintf("%dkm away", roundKm(distance))},
			Category:        CategoryUser,
		})
	}

	return scores
}

// Similarity scores profile completeness of users the source has not liked yet.
// It only runs for users with at least one like on record.
func (c *Collectors) Similarity(ctx context.Context, user *User) []CandidateScore {
	likes, err := c.repo.ListInteractions(ctx, user.ID, InteractionLike, similarityLikeLimit)
	if err != nil {
		c.logger.Warn("similarity collector: failed to load likes", "user_id", user.ID, "error", err)
		return nil
	}
	if len(likes) == 0 {
		return nil
	}

	// liked users are excluded in the query so they do not use up the pool
	excluded := make([]string, 0, len(likes)+1)
	excluded = append(excluded, user.ID)
	for _, like := range likes {
		if like.TargetUserID != nil {
			excluded = append(excluded, *like.TargetUserID)
		}
	}

	pool, err := c.repo.ListOnboardedUsersExcluding(ctx, excluded, similarityPoolSize)
	if err != nil {
		c.logger.Warn("similarity collector: failed to load candidates", "user_id", user.ID, "error", err)
		return nil
	}

	var scores []CandidateScore
	for _, candidate := range pool {
		score := completenessScore(candidate)
		if score <= 0 {
			continue
		}

		scores = append(scores, CandidateScore{
			UserID:          user.ID,
			CandidateUserID: candidate.ID,
			Score:           score,
			Reasons:         []string{similarityReason},
			Category:        CategoryUser,
		})
	}

	return scores
}

// Reunion scores past travel companions (ended connections) who are within 50 km again.
// One user lookup per connection; the connection list is capped at 50.
func (c *Collectors) Reunion(ctx context.Context, user *User) []CandidateScore {
	lat, lon, ok := user.Coordinates()
	if !ok {
		return nil
	}

	connections, err := c.repo.ListEndedConnectionsInvolving(ctx, user.ID, reunionConnectionLimit)
	if err != nil {
		c.logger.Warn("reunion collector: failed to load connections", "user_id", user.ID, "error", err)
		return nil
	}

	var scores []CandidateScore
	for _, conn := range connections {
		otherID := conn.OtherParty(user.ID)
		if otherID == user.ID {
			continue
		}

		other, err := c.repo.GetUser(ctx, otherID)
		if err != nil {
			c.logger.Debug("reunion collector: skipping companion", "user_id", user.ID, "companion_id", otherID, "error", err)
			continue
		}

		otherLat, otherLon, ok := other.Coordinates()
		if !ok {
			continue
		}

		distance := DistanceKm(lat, lon, otherLat, otherLon)
		if distance > reunionRadiusKm {
			continue
		}

		scores = append(scores, CandidateScore{
			UserID:          user.ID,
			CandidateUserID: other.ID,
			Score:           80 + math.Max(0, 20-distance),
			Reasons:         []string{fmt.Sprintf("Past travel companion nearby (%dkm)", roundKm(distance))},
			Category:        CategoryReunion,
		})
	}

	return scores
}

func completenessScore(u *User) float64 {
	score := 0.0
	if u.HasName() {
		score += 5
	}
	if len(u.Photos) > 0 {
		score += 10
	}
	if _, _, ok := u.Coordinates(); ok {
		score += 5
	}
	return score
}

func roundKm(distance float64) int {
	return int(math.Round(distance))
}
