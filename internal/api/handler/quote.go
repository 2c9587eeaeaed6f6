package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/mysphere/internal/api/request"
	"github.com/mcoot/mysphere/internal/api/response"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/moderation"
)

// QuoteHandler serves the public quote feed and the admin panel
type QuoteHandler struct {
	moderationService *moderation.Service
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(moderationService *moderation.Service) *QuoteHandler {
	return &QuoteHandler{
		moderationService: moderationService,
	}
}

// filterFromQuery reads status, category and limit query parameters
func filterFromQuery(r *http.Request) (model.QuoteFilter, error) {
	q := r.URL.Query()
	var f model.QuoteFilter

	if v := q.Get("status"); v != "" {
		f.Status = model.QuoteStatus(v)
		if !f.Status.Valid() {
			return f, NewInvalidRequestError("unknown status")
		}
	}
	if v := q.Get("category"); v != "" {
		c, ok := model.ParseQuoteCategory(v)
		if !ok {
			return f, NewInvalidRequestError("unknown category")
		}
		f.Category = c
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, NewInvalidRequestError("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

// ListApproved handles GET /api/v1/quotes
func (h *QuoteHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	quotes, err := h.moderationService.ListApproved(r.Context(), f.Category, f.Limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.NewQuoteList(quotes))
}

// Submit handles POST /api/v1/quotes
func (h *QuoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	q, err := h.moderationService.Submit(r.Context(), moderation.Submission{
		Content:     req.Content,
		SubmittedBy: string(caller(r)),
		Category:    req.Category,
		IsOwnQuote:  req.IsOwnQuote,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	response.Created(w, q)
}

// AdminList handles GET /api/v1/admin/quotes
func (h *QuoteHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	quotes, err := h.moderationService.List(r.Context(), caller(r), f)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.NewQuoteList(quotes))
}

// Stats handles GET /api/v1/admin/quotes/stats
func (h *QuoteHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.moderationService.Stats(r.Context(), caller(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.QuoteStats{QuoteStats: stats, Total: stats.Total()})
}

// Moderate handles PATCH /api/v1/admin/quotes/{id}
func (h *QuoteHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req request.ModerateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	status := model.QuoteStatus(req.Status)
	if !status.Valid() {
		WriteError(w, NewInvalidRequestError("status must be approved or rejected"))
		return
	}

	id := model.QuoteID(mux.Vars(r)["id"])
	q, err := h.moderationService.SetStatus(r.Context(), caller(r), id, status)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

// Delete handles DELETE /api/v1/admin/quotes/{id}
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := model.QuoteID(mux.Vars(r)["id"])
	if err := h.moderationService.Delete(r.Context(), caller(r), id); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// BulkDelete handles POST /api/v1/admin/quotes/bulk-delete
func (h *QuoteHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req request.BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	ids := make([]model.QuoteID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = model.QuoteID(id)
	}

	n, err := h.moderationService.DeleteBulk(r.Context(), caller(r), ids)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.BulkDelete{Deleted: n})
}
