package handler

import (
	"net/http"

	"servizephyr/internal/delivery"
	"servizephyr/internal/model"
	"servizephyr/internal/service"

	"github.com/rs/zerolog"
)

// RiderHandler exposes the delivery state machine to riders.
type RiderHandler struct {
	service service.DeliveryService
	logger  zerolog.Logger
}

// NewRiderHandler creates a new rider handler.
func NewRiderHandler(service service.DeliveryService, logger zerolog.Logger) *RiderHandler {
	return &RiderHandler{
		service: service,
		logger:  logger.With().Str("handler", "rider").Logger(),
	}
}

func (h *RiderHandler) ReachedRestaurant(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.ReachedRestaurant)
}

func (h *RiderHandler) PickUp(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.PickUp)
}

func (h *RiderHandler) StartDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.StartDelivery)
}

func (h *RiderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.Deliver)
}

func (h *RiderHandler) AttemptDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.AttemptDelivery)
}

func (h *RiderHandler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.MarkFailed)
}

func (h *RiderHandler) ReturnOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, delivery.ReturnOrder)
}

// UpdateStatus handles POST /api/rider/update-status requests.
func (h *RiderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := requireRole(r, model.RoleRider)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	var req model.UpdateStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	result, err := h.service.UpdateStatus(r.Context(), id.UserID, id.ActorName(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *RiderHandler) transition(w http.ResponseWriter, r *http.Request, name string) {
	id, err := requireRole(r, model.RoleRider)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	var req model.TransitionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	req.RiderID = id.UserID
	req.Actor = id.ActorName()
	req.Transition = name

	result, err := h.service.Transition(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
