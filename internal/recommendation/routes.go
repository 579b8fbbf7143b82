package recommendation

import (
	"github.com/gorilla/mux"

	"github.com/obimo/obimo-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Recommendations
	api.HandleFunc("/recommendations/generate", handler.GenerateRecommendations).Methods("POST")
	api.HandleFunc("/recommendations", handler.GetRecommendations).Methods("GET")
	api.HandleFunc("/recommendations/{id:[0-9]+}/view", handler.MarkViewed).Methods("POST")
	api.HandleFunc("/recommendations/{id:[0-9]+}/action", handler.RecordAction).Methods("POST")

	// Interactions
	api.HandleFunc("/interactions", handler.RecordInteraction).Methods("POST")
}
