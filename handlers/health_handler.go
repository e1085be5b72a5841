package handlers

import (
	"context"
	"net/http"
	"time"

	repository "kpitracker/repositories"
	"kpitracker/utils"

	"go.uber.org/zap"
)

// Health reports whether the document store answers a ping.
func Health(store repository.Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			utils.HandleMessageResponse(w, "Document store unavailable", http.StatusServiceUnavailable)
			return
		}
		utils.HandleMessageResponse(w, "OK", http.StatusOK)
	}
}
