package recommendation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository interface {
	// Users
	GetUser(ctx context.Context, id string) (*User, error)
	ListOnboardedUsersExcluding(ctx context.Context, excludedIDs []string, limit int) ([]*User, error)
	ListRecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error)

	// Interactions
	ListInteractions(ctx context.Context, userID string, interactionType InteractionType, limit int) ([]*InteractionEvent, error)
	InsertInteraction(ctx context.Context, event *InteractionEvent) error
	FindReciprocalInteraction(ctx context.Context, userID, targetID string, types []InteractionType) (*InteractionEvent, error)

	// Connections
	ListEndedConnectionsInvolving(ctx context.Context, userID string, limit int) ([]*Connection, error)

	// Recommendations
	FindActiveRecommendation(ctx context.Context, userID, candidateID string) (*Recommendation, error)
	InsertRecommendation(ctx context.Context, rec *Recommendation) error
	UpdateRecommendationScore(ctx context.Context, rec *Recommendation) error
	GetRecommendation(ctx context.Context, id int64) (*Recommendation, error)
	ListActiveRecommendations(ctx context.Context, userID string, limit int) ([]*Recommendation, error)
	UpdateRecommendationState(ctx context.Context, rec *Recommendation) error
	MarkRecommendationActedOn(ctx context.Context, id int64, action string) error
	DeactivateExpiredRecommendations(ctx context.Context) (int64, error)

	// Training signals
	InsertTrainingSignal(ctx context.Context, signal *TrainingSignal) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// User Methods

const userColumns = `id, display_name, photos, latitude, longitude, onboarding_completed, created_at, updated_at`

func (r *postgresRepository) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *postgresRepository) ListOnboardedUsersExcluding(ctx context.Context, excludedIDs []string, limit int) ([]*User, error) {
	users := []*User{}
	query := `
        SELECT ` + userColumns + `
        FROM users
        WHERE id <> ALL($1::varchar[]) AND onboarding_completed = TRUE
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &users, query, pq.StringArray(excludedIDs), limit)
	return users, err
}

func (r *postgresRepository) ListRecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	ids := []string{}
	query := `
        SELECT user_id
        FROM user_interactions
        WHERE created_at > $1
        GROUP BY user_id
        ORDER BY MAX(created_at) DESC
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &ids, query, since, limit)
	return ids, err
}

// Interaction Methods

const interactionColumns = `id, user_id, target_user_id, location_id, interaction_type, duration, context, metadata, created_at`

func (r *postgresRepository) ListInteractions(ctx context.Context, userID string, interactionType InteractionType, limit int) ([]*InteractionEvent, error) {
	events := []*InteractionEvent{}

	var err error
	if interactionType == "" {
		query := `
            SELECT ` + interactionColumns + `
            FROM user_interactions
            WHERE user_id = $1
            ORDER BY created_at DESC
            LIMIT $2
        `
		err = r.db.SelectContext(ctx, &events, query, userID, limit)
	} else {
		query := `
            SELECT ` + interactionColumns + `
            FROM user_interactions
            WHERE user_id = $1 AND interaction_type = $2
            ORDER BY created_at DESC
            LIMIT $3
        `
		err = r.db.SelectContext(ctx, &events, query, userID, interactionType, limit)
	}

	return events, err
}

func (r *postgresRepository) InsertInteraction(ctx context.Context, event *InteractionEvent) error {
	metadata := "{}"
	if len(event.Metadata) > 0 {
		metadata = string(event.Metadata)
	}

	query := `
        INSERT INTO user_interactions (
            user_id, target_user_id, location_id, interaction_type, duration, context, metadata
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `

	return r.db.QueryRowxContext(
		ctx, query,
		event.UserID, event.TargetUserID, event.LocationID,
		event.InteractionType, event.Duration, event.Context, metadata,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *postgresRepository) FindReciprocalInteraction(ctx context.Context, userID, targetID string, types []InteractionType) (*InteractionEvent, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	var event InteractionEvent
	query := `
        SELECT ` + interactionColumns + `
        FROM user_interactions
        WHERE user_id = $1 AND target_user_id = $2 AND interaction_type = ANY($3)
        ORDER BY created_at DESC
        LIMIT 1
    `

	err := r.db.GetContext(ctx, &event, query, userID, targetID, pq.Array(names))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &event, nil
}

// Connection Methods

func (r *postgresRepository) ListEndedConnectionsInvolving(ctx context.Context, userID string, limit int) ([]*Connection, error) {
	connections := []*Connection{}
	query := `
        SELECT id, user_id, connected_user_id, status, connection_type, created_at, updated_at
        FROM connections
        WHERE (user_id = $1 OR connected_user_id = $1) AND status = 'ended'
        ORDER BY updated_at DESC
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &connections, query, userID, limit)
	return connections, err
}

// Recommendation Methods

const recommendationColumns = `id, user_id, recommended_user_id, confidence_score, reason_codes, category,
        is_active, is_viewed, is_acted_on, action_taken, expires_at, created_at, updated_at`

func (r *postgresRepository) FindActiveRecommendation(ctx context.Context, userID, candidateID string) (*Recommendation, error) {
	var rec Recommendation
	query := `
        SELECT ` + recommendationColumns + `
        FROM recommendations
        WHERE user_id = $1 AND recommended_user_id = $2 AND is_active = TRUE
        LIMIT 1
    `

	err := r.db.GetContext(ctx, &rec, query, userID, candidateID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *postgresRepository) InsertRecommendation(ctx context.Context, rec *Recommendation) error {
	// A concurrent insert for the same active pair becomes an update
	query := `
        INSERT INTO recommendations (
            user_id, recommended_user_id, confidence_score, reason_codes, category, is_active, expires_at
        ) VALUES ($1, $2, $3, $4, $5, TRUE, $6)
        ON CONFLICT (user_id, recommended_user_id) WHERE is_active
        DO UPDATE SET
            confidence_score = EXCLUDED.confidence_score,
            reason_codes = EXCLUDED.reason_codes,
            category = EXCLUDED.category,
            expires_at = EXCLUDED.expires_at,
            updated_at = CURRENT_TIMESTAMP
        RETURNING id, is_viewed, is_acted_on, created_at, updated_at
    `

	err := r.db.QueryRowxContext(
		ctx, query,
		rec.UserID, rec.RecommendedUserID, rec.ConfidenceScore,
		reasonCodes(rec), rec.Category, rec.ExpiresAt,
	).Scan(&rec.ID, &rec.IsViewed, &rec.IsActedOn, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return err
	}

	rec.IsActive = true
	return nil
}

func (r *postgresRepository) UpdateRecommendationScore(ctx context.Context, rec *Recommendation) error {
	query := `
        UPDATE recommendations
        SET confidence_score = $2, reason_codes = $3, category = $4,
            expires_at = $5, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
        RETURNING updated_at
    `

	err := r.db.QueryRowxContext(
		ctx, query,
		rec.ID, rec.ConfidenceScore, reasonCodes(rec), rec.Category, rec.ExpiresAt,
	).Scan(&rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecommendationNotFound
	}

	return err
}

func (r *postgresRepository) GetRecommendation(ctx context.Context, id int64) (*Recommendation, error) {
	var rec Recommendation
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1`

	err := r.db.GetContext(ctx, &rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecommendationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *postgresRepository) ListActiveRecommendations(ctx context.Context, userID string, limit int) ([]*Recommendation, error) {
	recs := []*Recommendation{}
	query := `
        SELECT ` + recommendationColumns + `
        FROM recommendations
        WHERE user_id = $1 AND is_active = TRUE
              AND (expires_at IS NULL OR expires_at > NOW())
        ORDER BY confidence_score DESC, updated_at DESC
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &recs, query, userID, limit)
	return recs, err
}

func (r *postgresRepository) UpdateRecommendationState(ctx context.Context, rec *Recommendation) error {
	query := `
        UPDATE recommendations
        SET is_active = $2, is_viewed = $3, is_acted_on = $4, action_taken = $5,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `

	result, err := r.db.ExecContext(
		ctx, query,
		rec.ID, rec.IsActive, rec.IsViewed, rec.IsActedOn, rec.ActionTaken,
	)
	if err != nil {
		return err
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}

// MarkRecommendationActedOn closes a recommendation with the given action.
// It only matches rows not yet acted on, so of two racing swipes one gets ErrAlreadyActedOn.
func (r *postgresRepository) MarkRecommendationActedOn(ctx context.Context, id int64, action string) error {
	query := `
        UPDATE recommendations
        SET is_active = FALSE, is_viewed = TRUE, is_acted_on = TRUE, action_taken = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND is_acted_on = FALSE
    `

	result, err := r.db.ExecContext(ctx, query, id, action)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyActedOn
	}
	return nil
}

func (r *postgresRepository) DeactivateExpiredRecommendations(ctx context.Context) (int64, error) {
	query := `
        UPDATE recommendations
        SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
        WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at < NOW()
    `

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// reason_codes is NOT NULL; a nil array would be sent as NULL
func reasonCodes(rec *Recommendation) pq.StringArray {
	if rec.ReasonCodes == nil {
		return pq.StringArray{}
	}
	return rec.ReasonCodes
}

// Training Signal Methods

func (r *postgresRepository) InsertTrainingSignal(ctx context.Context, signal *TrainingSignal) error {
	data := "{}"
	if len(signal.Data) > 0 {
		data = string(signal.Data)
	}

	query := `
        INSERT INTO training_signals (signal_type, data, processed)
        VALUES ($1, $2, FALSE)
        RETURNING id, created_at
    `

	return r.db.QueryRowxContext(ctx, query, signal.SignalType, data).Scan(&signal.ID, &signal.CreatedAt)
}
