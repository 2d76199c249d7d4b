package httpapi

import (
	"net/http"

	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"

	"github.com/jinzhu/copier"
)

type deliveryPersonRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required,min=8,max=20"`
	IsActive *bool  `json:"is_active"`
}

type updateDeliveryPersonRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,min=8,max=20"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) handleDeliveryPersons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		persons, err := h.svc.ListDeliveryPersons(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, persons)
	case http.MethodPost:
		var req deliveryPersonRequest
		if !decodeRequest(w, r, &req, false) {
			return
		}
		var input service.DeliveryPersonInput
		if err := copier.Copy(&input, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		person, err := h.svc.CreateDeliveryPerson(r.Context(), input)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, person)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDeliveryPersonActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/delivery-persons/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPut && r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req updateDeliveryPersonRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	var input store.UpdateDeliveryPersonInput
	if err := copier.Copy(&input, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	person, err := h.svc.UpdateDeliveryPerson(r.Context(), parts[0], input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	summary, err := h.svc.ListCustomers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
