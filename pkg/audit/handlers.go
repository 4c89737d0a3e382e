package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handlers exposes the operator API over HTTP.
type Handlers struct {
	service *Service
	log     logrus.FieldLogger
}

// NewHandlers creates the operator API handlers.
func NewHandlers(service *Service, log logrus.FieldLogger) *Handlers {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handlers{service: service, log: log}
}

// RegisterRoutes registers the operator API routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/logs", h.listLogs).Methods("GET")
	router.HandleFunc("/audit/stats", h.getStats).Methods("GET")
	router.HandleFunc("/audit/export", h.exportLogs).Methods("GET")
	router.HandleFunc("/audit/cleanup", h.runCleanup).Methods("POST")
}

// listLogs handles GET /audit/logs.
func (h *Handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": result.Entries,
		"total":   result.Total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// getStats handles GET /audit/stats.
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// exportLogs handles GET /audit/export.
func (h *Handlers) exportLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	format := ExportFormat(r.URL.Query().Get("format"))
	result, err := h.service.Export(r.Context(), filter, format)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.Format == ExportFormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
		_, _ = w.Write([]byte(result.CSVData))
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	h.writeJSON(w, http.StatusOK, result)
}

// runCleanup handles POST /audit/cleanup.
func (h *Handlers) runCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Cleanup(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// parseFilter builds a Filter from query parameters. Invalid inputs
// surface as ValidationErrors so callers get a 400, not a 500.
func parseFilter(r *http.Request) (Filter, error) {
	query := r.URL.Query()

	filter := Filter{
		UserID:       query.Get("userId"),
		ActionType:   ActionType(query.Get("actionType")),
		ResourceType: ResourceType(query.Get("resourceType")),
		RiskLevel:    RiskLevel(query.Get("riskLevel")),
		Search:       query.Get("search"),
	}

	success, err := ParseSuccess(query.Get("success"))
	if err != nil {
		return Filter{}, err
	}
	filter.Success = success

	if raw := query.Get("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, NewValidationError("startDate", "must be RFC 3339")
		}
		filter.StartDate = &t
	}
	if raw := query.Get("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, NewValidationError("endDate", "must be RFC 3339")
		}
		filter.EndDate = &t
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, NewValidationError("limit", "must be an integer")
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, NewValidationError("offset", "must be an integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Warn("failed to encode response")
	}
}

// writeError maps validation failures to 400 and everything else to
// 500, with a JSON error body either way.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if IsValidation(err) {
		code = http.StatusBadRequest
	} else {
		h.log.WithError(err).Error("operator API request failed")
	}
	h.writeJSON(w, code, map[string]string{"error": err.Error()})
}
