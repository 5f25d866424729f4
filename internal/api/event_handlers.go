package api

import (
	"net/http"
	"strconv"

	"remote-finder/internal/models"
)

// @Summary      Get lifecycle events
// @Description  Lists session lifecycle events for the current remote account with an id greater than "since". Empty when no journal is configured.
// @Tags         events
// @Produce      json
// @Security     SessionToken
// @Param        since  query     int  false  "The ID of the last event received. Omit or use 0 to get all events."
// @Success      200    {array}   models.Event
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Failure      500    {object}  errorResponse
// @Router       /events [get]
func (s *Server) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())

	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		sinceStr = "0"
	}

	sinceID, err := strconv.ParseInt(sinceStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'since' parameter, must be a number")
		return
	}

	if s.journal == nil {
		writeJSON(w, http.StatusOK, []models.Event{})
		return
	}

	events, err := s.journal.GetEventsSince(r.Context(), sess.Remote.Host, sess.Remote.Username, sinceID)
	if err != nil {
		writeFailure(w, "Failed to retrieve events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
