package recommendation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

const defaultTopN = 20

type collectorFunc func(ctx context.Context, user *User) []CandidateScore

type namedCollector struct {
	name    string
	collect collectorFunc
}

// Engine runs one recommendation generation: collect, aggregate, adjust,
// rank, persist. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	repo       Repository
	collectors []namedCollector
	adjuster   *RankAdjuster
	persister  *Persister
	signals    *SignalLogger
	logger     *logger.Logger
	topN       int
	now        func() time.Time
}

type EngineConfig struct {
	TopN              int
	RecommendationTTL time.Duration
	ModelTimeout      time.Duration
}

// NewEngine wires the pipeline stages. model may be nil, in which case
// re-ranking is skipped.
func NewEngine(repo Repository, model Model, cfg EngineConfig, log *logger.Logger) *Engine {
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}

	signals := NewSignalLogger(repo, log)
	collectors := NewCollectors(repo, log)

	return &Engine{
		repo: repo,
		collectors: []namedCollector{
			{name: "proximity", collect: collectors.Proximity},
			{name: "similarity", collect: collectors.Similarity},
			{name: "reunion", collect: collectors.Reunion},
		},
		adjuster:  NewRankAdjuster(repo, model, signals, log, cfg.ModelTimeout),
		persister: NewPersister(repo, log, cfg.RecommendationTTL),
		signals:   signals,
		logger:    log,
		topN:      cfg.TopN,
		now:       time.Now,
	}
}

// Signals exposes the engine's training signal sink so other entry points
// share it.
func (e *Engine) Signals() *SignalLogger {
	return e.signals
}

// GenerateRecommendations produces and stores up to top-N recommendations for
// userID. Only a failure to load the user aborts the run; every later stage
// degrades instead of failing.
func (e *Engine) GenerateRecommendations(ctx context.Context, userID string) ([]*Recommendation, error) {
	start := e.now()
	generationID := uuid.New().String()
	log := e.logger.With("user_id", userID, "generation_id", generationID)

	user, err := e.repo.GetUser(ctx, userID)
	if err != nil {
		log.Warn("generation aborted: user lookup failed", "error", err)
		return []*Recommendation{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	candidates := Aggregate(e.collect(ctx, user))
	candidates = e.adjuster.Adjust(ctx, userID, user, candidates)
	ranked := rankTopN(candidates, e.topN)

	recs := make([]*Recommendation, 0, len(ranked))
	for _, candidate := range ranked {
		rec, err := e.persister.Persist(ctx, userID, candidate)
		if err != nil {
			log.Warn("failed to persist recommendation", "candidate_id", candidate.CandidateUserID, "error", err)
			recordPersistFailure()
			continue
		}
		recs = append(recs, rec)
	}

	topScore := 0.0
	if len(ranked) > 0 {
		topScore = ranked[0].Score
	}
	e.signals.Log(ctx, SignalRecommendationsCreated, map[string]interface{}{
		"userId":       userID,
		"count":        len(recs),
		"topScore":     topScore,
		"generationId": generationID,
		"timestamp":    start.UTC().Format(time.RFC3339),
	})

	elapsed := e.now().Sub(start)
	recordGeneration(len(recs), elapsed)
	log.Info("recommendations generated", "candidates", len(candidates), "persisted", len(recs), "duration", elapsed)

	return recs, nil
}

// collect runs every collector concurrently and concatenates their output in
// collector order, so aggregation sees a stable emission order.
func (e *Engine) collect(ctx context.Context, user *User) []CandidateScore {
	results := make([][]CandidateScore, len(e.collectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range e.collectors {
		i, c := i, c
		g.Go(func() error {
			results[i] = c.collect(gctx, user)
			return nil
		})
	}
	_ = g.Wait()

	var all []CandidateScore
	for i, c := range e.collectors {
		recordCollectorCandidates(c.name, len(results[i]))
		all = append(all, results[i]...)
	}
	return all
}

// rankTopN sorts by score descending, keeping aggregation order among ties,
// and truncates to n.
func rankTopN(candidates []CandidateScore, n int) []CandidateScore {
	ranked := make([]CandidateScore, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
