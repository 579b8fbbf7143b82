package recommendation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/obimo/obimo-backend/internal/auth"
	"github.com/obimo/obimo-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	recs, err := h.service.GenerateRecommendations(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to generate recommendations")
		return
	}

	utils.RespondWithData(w, http.StatusOK, GenerateResponse{Recommendations: recs, Count: len(recs)})
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := &GetRecommendationsParams{}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil || l < 1 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		params.Limit = l
	}

	recs, err := h.service.GetRecommendations(r.Context(), userID, params)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get recommendations")
		return
	}

	utils.RespondWithData(w, http.StatusOK, recs)
}

func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	recID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid recommendation ID")
		return
	}

	rec, err := h.service.MarkViewed(r.Context(), userID, recID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update recommendation")
		return
	}

	utils.RespondWithData(w, http.StatusOK, rec)
}

func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	recID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid recommendation ID")
		return
	}

	var dto RecommendationActionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.RecordAction(r.Context(), userID, recID, &dto)
	if err != nil {
		respondWithServiceError(w, err, "Failed to record action")
		return
	}

	utils.RespondWithData(w, http.StatusOK, result)
}

func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var dto InteractionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ProcessInteraction(r.Context(), userID, &dto)
	if err != nil {
		respondWithServiceError(w, err, "Failed to record interaction")
		return
	}

	utils.RespondWithData(w, http.StatusCreated, result)
}

func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrRecommendationNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnauthorized):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrGenerationInProgress), errors.Is(err, ErrAlreadyActedOn):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAction), errors.Is(err, ErrSelfInteraction):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
