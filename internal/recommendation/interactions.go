package recommendation

import (
	"context"
	"fmt"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

var interactionWeights = map[InteractionType]int{
	InteractionLike:      5,
	InteractionSuperLike: 10,
	InteractionView:      1,
	InteractionClick:     2,
	InteractionPass:      -3,
	InteractionVisit:     3,
	InteractionMessage:   4,
}

// InteractionWeight returns the training weight of an interaction type.
// Unlisted types weigh 1.
func InteractionWeight(t InteractionType) int {
	if w, ok := interactionWeights[t]; ok {
		return w
	}
	return 1
}

// InteractionProcessor records raw events and derives the weighted and
// mutual-match training signals from them.
type InteractionProcessor struct {
	repo    Repository
	signals *SignalLogger
	logger  *logger.Logger
}

func NewInteractionProcessor(repo Repository, signals *SignalLogger, log *logger.Logger) *InteractionProcessor {
	return &InteractionProcessor{repo: repo, signals: signals, logger: log}
}

// MatchResult reports whether recording an interaction completed a mutual match
type MatchResult struct {
	Interaction *InteractionEvent `json:"interaction"`
	Weight      int               `json:"weight"`
	MutualMatch bool              `json:"mutual_match"`
}

// RecordInteraction stores the event, then logs its training signals. Only the
// event write can fail the call; signal and reciprocity lookups are best effort.
func (p *InteractionProcessor) RecordInteraction(ctx context.Context, event *InteractionEvent) (*MatchResult, error) {
	if err := p.repo.InsertInteraction(ctx, event); err != nil {
		return nil, fmt.Errorf("insert interaction: %w", err)
	}
	recordInteraction(event.InteractionType)

	weight := InteractionWeight(event.InteractionType)
	result := &MatchResult{Interaction: event, Weight: weight}

	var targetID interface{}
	if event.TargetUserID != nil {
		targetID = *event.TargetUserID
	}
	p.signals.Log(ctx, SignalUserInteraction, map[string]interface{}{
		"userId":          event.UserID,
		"targetId":        targetID,
		"interactionType": string(event.InteractionType),
		"weight":          weight,
	})

	if !isPositive(event.InteractionType) || event.TargetUserID == nil {
		return result, nil
	}

	target := *event.TargetUserID
	reciprocal, err := p.repo.FindReciprocalInteraction(ctx, target, event.UserID, []InteractionType{InteractionLike, InteractionSuperLike})
	if err != nil {
		p.logger.Warn("mutual match lookup failed", "user_id", event.UserID, "target_id", target, "error", err)
		return result, nil
	}
	if reciprocal == nil {
		return result, nil
	}

	result.MutualMatch = true
	recordMutualMatch()
	p.signals.Log(ctx, SignalMutualMatch, map[string]interface{}{
		"userId":        event.UserID,
		"matchedUserId": target,
	})
	p.logger.Info("mutual match detected", "user_id", event.UserID, "matched_user_id", target)

	return result, nil
}

func isPositive(t InteractionType) bool {
	return t == InteractionLike || t == InteractionSuperLike
}
