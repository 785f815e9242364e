package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"check-orchestrator/core/models"
	"check-orchestrator/core/scheduler"
)

// CheckHandler handles check submission and status requests
type CheckHandler struct {
	scheduler *scheduler.Scheduler
	validate  *validator.Validate
}

// NewCheckHandler creates a new check handler
func NewCheckHandler(sched *scheduler.Scheduler) *CheckHandler {
	return &CheckHandler{
		scheduler: sched,
		validate:  validator.New(),
	}
}

// SubmitCheckRequest is the body for POST /v1/checks
type SubmitCheckRequest struct {
	Website    string `json:"website" validate:"required"`
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	ExpMonth   string `json:"exp_month" validate:"required"`
	ExpYear    string `json:"exp_year" validate:"required"`
	CVV        string `json:"cvv"`
	UseProxy   *bool  `json:"use_proxy"`
	NoWait     bool   `json:"no_wait"`
}

// SubmitCheckResponse is returned once a job is accepted
type SubmitCheckResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// SubmitCheck handles POST /v1/checks
func (h *CheckHandler) SubmitCheck(w http.ResponseWriter, r *http.Request) {
	var req SubmitCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.scheduler.Submit(scheduler.SubmitSpec{
		Site: req.Website,
		Card: models.Card{
			Number:   req.CardNumber,
			ExpMonth: req.ExpMonth,
			ExpYear:  req.ExpYear,
			CVV:      req.CVV,
		},
		UseProxy: req.UseProxy == nil || *req.UseProxy,
		NoWait:   req.NoWait,
	})
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitCheckResponse{
		JobID:  id,
		Status: models.JobStatusQueued,
	})
}

// SubmitBulkRequest is the body for POST /v1/checks/bulk
type SubmitBulkRequest struct {
	Website  string        `json:"website" validate:"required"`
	Cards    []CardRequest `json:"cards" validate:"required,min=1,dive"`
	UseProxy *bool         `json:"use_proxy"`
	NoWait   bool          `json:"no_wait"`
}

// CardRequest is one credential inside a bulk submission
type CardRequest struct {
	CardNumber string `json:"card_number" validate:"required,numeric,min=12,max=19"`
	ExpMonth   string `json:"exp_month" validate:"required"`
	ExpYear    string `json:"exp_year" validate:"required"`
	CVV        string `json:"cvv"`
}

// SubmitBulkResponse is returned once a batch is accepted
type SubmitBulkResponse struct {
	BatchID  string   `json:"batch_id"`
	JobIDs   []string `json:"job_ids"`
	Queued   int      `json:"queued"`
	Rejected int      `json:"rejected,omitempty"`
}

// SubmitBulk handles POST /v1/checks/bulk
func (h *CheckHandler) SubmitBulk(w http.ResponseWriter, r *http.Request) {
	var req SubmitBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cards := make([]models.Card, 0, len(req.Cards))
	for _, c := range req.Cards {
		cards = append(cards, models.Card{
			Number:   c.CardNumber,
			ExpMonth: c.ExpMonth,
			ExpYear:  c.ExpYear,
			CVV:      c.CVV,
		})
	}

	batchID, ids, rejected, err := h.scheduler.SubmitBatch(
		req.Website, cards, req.UseProxy == nil || *req.UseProxy, req.NoWait)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitBulkResponse{
		BatchID:  batchID,
		JobIDs:   ids,
		Queued:   len(ids),
		Rejected: rejected,
	})
}

// GetCheck handles GET /v1/checks/{id}
func (h *CheckHandler) GetCheck(w http.ResponseWriter, r *http.Request) {
	view, err := h.scheduler.Get(mux.Vars(r)["id"])
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CancelCheck handles POST /v1/checks/{id}/cancel
func (h *CheckHandler) CancelCheck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.scheduler.Cancel(id); err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id, "status": "cancelling"})
}

// GetBatch handles GET /v1/batches/{id}
func (h *CheckHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	view, err := h.scheduler.Batch(mux.Vars(r)["id"])
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeSchedulerError(w http.ResponseWriter, err error) {
	var verr *scheduler.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, scheduler.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please slow down")
	case errors.Is(err, scheduler.ErrJobNotFound), errors.Is(err, scheduler.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
