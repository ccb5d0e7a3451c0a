package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/klaviyo-delivery-service/internal/domain/model"
	"github.com/webitel/klaviyo-delivery-service/internal/service"
	"github.com/webitel/klaviyo-delivery-service/internal/service/dto"
)

const maxBodyBytes = 1 << 20

type DeliveryHandler struct {
	logger    *slog.Logger
	forwarder service.Forwarder
}

func NewDeliveryHandler(logger *slog.Logger, forwarder service.Forwarder) *DeliveryHandler {
	return &DeliveryHandler{
		logger:    logger,
		forwarder: forwarder,
	}
}

type deliveryResponse struct {
	Kind     string          `json:"kind"`
	Outcomes []model.Outcome `json:"outcomes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Identify accepts an identify message synchronously.
func (h *DeliveryHandler) Identify(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, dto.TypeIdentify)
}

// Track accepts track and order completed messages synchronously.
func (h *DeliveryHandler) Track(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, dto.TypeTrack)
}

func (h *DeliveryHandler) serve(w http.ResponseWriter, r *http.Request, want string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "body too large"})
		return
	}

	var raw dto.MessageV1
	if err := json.Unmarshal(body, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed json"})
		return
	}
	if raw.Type == "" {
		raw.Type = want
	}
	if !strings.EqualFold(raw.Type, want) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: raw.Type + " message sent to " + want})
		return
	}

	msg, err := raw.ToDomain()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	outcomes, err := h.forwarder.Forward(r.Context(), msg)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deliveryResponse{Kind: msg.Kind().String(), Outcomes: outcomes})
}

func (h *DeliveryHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("HTTP_DELIVERY_FAILED",
			"err", err,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, model.ErrTransport), errors.Is(err, model.ErrBadResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
