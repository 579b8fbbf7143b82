package recommendation

// DTOs for API requests/responses

type InteractionDTO struct {
	Type         InteractionType        `json:"type" validate:"required,oneof=view click like pass super_like share visit message"`
	TargetUserID string                 `json:"target_user_id,omitempty" validate:"omitempty,max=64"`
	LocationID   string                 `json:"location_id,omitempty" validate:"omitempty,max=64"`
	Duration     *int                   `json:"duration,omitempty" validate:"omitempty,min=0"`
	Context      string                 `json:"context,omitempty" validate:"omitempty,max=100"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

type RecommendationActionDTO struct {
	Action string `json:"action" validate:"required,oneof=liked passed super_liked"`
}

type GetRecommendationsParams struct {
	Limit int `json:"limit"`
}

type GenerateResponse struct {
	Recommendations []*Recommendation `json:"recommendations"`
	Count           int               `json:"count"`
}

type ActionResult struct {
	Recommendation *Recommendation `json:"recommendation"`
	MutualMatch    bool            `json:"mutual_match"`
}
