package payments_http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"farepay/internal/app/payments"
	"farepay/internal/domain"
)

const (
	maxPayBodyBytes      = 64 << 10
	maxCallbackBodyBytes = 1 << 20

	msgInvalidRequest = "Invalid request payload."
	msgInvalidAmount  = "Invalid payment amount."
	msgInternal       = "An internal server error occurred."
)

// CallbackParser turns a provider callback body into a validated result.
type CallbackParser func(body []byte) (domain.CallbackResult, error)

type PaymentHandler struct {
	initiation payments.InitiationService
	reconciler payments.CallbackReconciler
	status     payments.StatusService
	parse      CallbackParser
	logger     *zap.Logger
}

func NewPaymentHandler(
	initiation payments.InitiationService,
	reconciler payments.CallbackReconciler,
	status payments.StatusService,
	parse CallbackParser,
	l *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		initiation: initiation,
		reconciler: reconciler,
		status:     status,
		parse:      parse,
		logger:     l,
	}
}

func (h *PaymentHandler) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req payments.InitiatePaymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("Invalid initiate payment body", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	resp, err := h.initiation.Initiate(r.Context(), req)
	if err != nil {
		var gwErr *domain.GatewayError
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, msgInvalidRequest)
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, msgInvalidAmount)
		case errors.As(err, &gwErr):
			writeError(w, http.StatusInternalServerError, gwErr.PublicMessage())
		default:
			h.logger.Error("Failed to initiate payment", zap.String("subject_id", req.SubjectID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

// CallbackHandler always acknowledges. The provider retries on anything else,
// and every outcome is already recorded on our side.
func (h *PaymentHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes))
	if err != nil {
		h.reconciler.RejectMalformed(r.Context(), body, err)
		writeJSON(w, http.StatusOK, payments.AcceptedAck, h.logger)
		return
	}

	result, err := h.parse(body)
	if err != nil {
		h.reconciler.RejectMalformed(r.Context(), body, err)
		writeJSON(w, http.StatusOK, payments.AcceptedAck, h.logger)
		return
	}

	h.reconciler.Reconcile(r.Context(), result, body)
	writeJSON(w, http.StatusOK, payments.AcceptedAck, h.logger)
}

func (h *PaymentHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	merchantReference := chi.URLParam(r, "merchantReference")

	view, err := h.status.GetStatus(r.Context(), merchantReference)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "Merchant reference is required.")
			return
		}
		h.logger.Error("Failed to get payment status", zap.String("merchant_reference", merchantReference), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "An internal server error occurred while checking status.")
		return
	}

	writeJSON(w, http.StatusOK, payments.NewStatusResponse(view), h.logger)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, payments.ErrorResponse{Error: message}, nil)
}

func writeJSON(w http.ResponseWriter, status int, body any, l *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && l != nil {
		l.Error("Failed to write JSON response", zap.Error(err))
	}
}
