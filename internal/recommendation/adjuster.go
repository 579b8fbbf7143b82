package recommendation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

const (
	adjusterHistoryLimit   = 20
	adjusterPromptLimit    = 10
	minMultiplier          = 0.5
	maxMultiplier          = 2.0
	defaultAdjusterTimeout = 5 * time.Second
)

var errNoJSONObject = errors.New("no JSON object in model reply")

// Model is the external text model used to re-rank candidates. It makes no
// structural promise about its reply.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type modelAdjustment struct {
	Index            *float64 `json:"index"`
	Multiplier       *float64 `json:"multiplier"`
	AdditionalReason string   `json:"additionalReason"`
}

type modelReply struct {
	Adjustments []modelAdjustment `json:"adjustments"`
}

// RankAdjuster applies bounded multiplicative corrections suggested by the
// external model. Any failure returns the input list untouched.
type RankAdjuster struct {
	repo    Repository
	model   Model
	signals *SignalLogger
	logger  *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRankAdjuster builds an adjuster; a nil model turns it into a pass-through
func NewRankAdjuster(repo Repository, model Model, signals *SignalLogger, log *logger.Logger, timeout time.Duration) *RankAdjuster {
	if timeout <= 0 {
		timeout = defaultAdjusterTimeout
	}
	return &RankAdjuster{
		repo:    repo,
		model:   model,
		signals: signals,
		logger:  log,
		timeout: timeout,
		now:     time.Now,
	}
}

// Enabled reports whether a model is configured
func (a *RankAdjuster) Enabled() bool {
	return a.model != nil
}

func (a *RankAdjuster) Adjust(ctx context.Context, userID string, user *User, candidates []CandidateScore) []CandidateScore {
	if len(candidates) == 0 || !a.Enabled() {
		return candidates
	}

	adjusted, applied, err := a.adjust(ctx, userID, user, candidates)

	a.signals.Log(ctx, SignalModelAdjustment, map[string]interface{}{
		"userId":             userID,
		"candidateCount":     len(candidates),
		"adjustmentsApplied": applied,
		"success":            err == nil,
		"timestamp":          a.now().UTC().Format(time.RFC3339),
	})

	if err != nil {
		a.logger.Warn("model re-ranking failed, keeping original scores", "user_id", userID, "error", err)
		recordAdjustment("failed")
		return candidates
	}

	if applied > 0 {
		recordAdjustment("applied")
	} else {
		recordAdjustment("unchanged")
	}
	return adjusted
}

func (a *RankAdjuster) adjust(ctx context.Context, userID string, user *User, candidates []CandidateScore) (out []CandidateScore, applied int, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, applied, err = nil, 0, fmt.Errorf("re-ranking panicked: %v", r)
		}
	}()

	history, err := a.repo.ListInteractions(ctx, userID, "", adjusterHistoryLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("load interaction history: %w", err)
	}

	prompt := buildAdjusterPrompt(user, summarizeBehavior(history), candidates)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.model.Complete(callCtx, prompt)
	if err != nil {
		return nil, 0, fmt.Errorf("model call: %w", err)
	}

	raw, ok := ExtractJSONObject(text)
	if !ok {
		return nil, 0, errNoJSONObject
	}

	var reply modelReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, 0, fmt.Errorf("parse model reply: %w", err)
	}

	out = make([]CandidateScore, len(candidates))
	for i, c := range candidates {
		out[i] = c.clone()
	}

	for _, adj := range reply.Adjustments {
		if adj.Index == nil {
			continue
		}
		idx := *adj.Index
		if idx != math.Trunc(idx) || idx < 0 || idx >= float64(len(out)) {
			a.logger.Debug("ignoring adjustment with invalid index", "user_id", userID, "index", idx)
			continue
		}

		multiplier := 1.0
		if adj.Multiplier != nil {
			multiplier = clampMultiplier(*adj.Multiplier)
		}

		target := &out[int(idx)]
		target.Score *= multiplier
		if reason := strings.TrimSpace(adj.AdditionalReason); reason != "" {
			target.Reasons = append(target.Reasons, reason)
		}
		applied++
	}

	return out, applied, nil
}

type behaviorSummary struct {
	Likes      int
	SuperLikes int
	Passes     int
}

func summarizeBehavior(events []*InteractionEvent) behaviorSummary {
	var s behaviorSummary
	for _, e := range events {
		switch e.InteractionType {
		case InteractionLike:
			s.Likes++
		case InteractionSuperLike:
			s.SuperLikes++
		case InteractionPass:
			s.Passes++
		}
	}
	return s
}

func buildAdjusterPrompt(user *User, behavior behaviorSummary, candidates []CandidateScore) string {
	complete := user != nil && user.OnboardingCompleted && user.HasName() && len(user.Photos) > 0

	var b strings.Builder
	b.WriteString("You re-rank travel companion recommendations for a van-life social app.\n\n")
	fmt.Fprintf(&b, "User profile complete: %t\n", complete)
	fmt.Fprintf(&b, "Recent behavior: %d likes, %d super likes, %d passes\n\n", behavior.Likes, behavior.SuperLikes, behavior.Passes)

	b.WriteString("Candidates (index: score, category, reasons):\n")
	for i, c := range candidates {
		if i >= adjusterPromptLimit {
			break
		}
		fmt.Fprintf(&b, "%d: %.1f, %s, %s\n", i, c.Score, c.Category, strings.Join(c.Reasons, "; "))
	}

	b.WriteString("\nReturn ONLY a JSON object of this shape:\n")
	b.WriteString(`{"adjustments":[{"index":0,"multiplier":1.2,"additionalReason":"optional short reason"}]}`)
	fmt.Fprintf(&b, "\nindex refers to the list above. multiplier must be between %.1f and %.1f.\n", minMultiplier, maxMultiplier)

	return b.String()
}

func clampMultiplier(m float64) float64 {
	return math.Min(maxMultiplier, math.Max(minMultiplier, m))
}

// ExtractJSONObject returns the first balanced, valid JSON object embedded in
// free text, skipping braces that appear inside string literals. Brace spans
// that are not valid JSON, such as prose placeholders, are passed over.
func ExtractJSONObject(text string) ([]byte, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchObject(text, start); ok && json.Valid([]byte(text[start:end+1])) {
			return []byte(text[start : end+1]), true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

func matchObject(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
