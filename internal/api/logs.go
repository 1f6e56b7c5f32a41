package api

import (
	"net/http"
	"strconv"

	"github.com/smartgarage/garage-core/internal/accesslog"
)

// handleListLogs returns a paginated slice of the access log.
// Admin only; filters are passed as query parameters.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.accessLog == nil {
		writeNotFound(w, "access logging is not enabled")
		return
	}

	q := r.URL.Query()
	filter := accesslog.Filter{
		Actor:    q.Get("actor"),
		GarageID: q.Get("garage_id"),
		Action:   q.Get("action"),
		Outcome:  q.Get("outcome"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.accessLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list access logs failed", "error", err)
		writeInternalError(w, "failed to list access logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
