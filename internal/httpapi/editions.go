package httpapi

import (
	"log"
	"net/http"

	"dogao/order-service/internal/service"

	"github.com/shopspring/decimal"
)

type editionRequest struct {
	Name           string          `json:"name" validate:"required,max=120"`
	ProductionDate string          `json:"production_date" validate:"required,datetime=2006-01-02"`
	ClosingTime    string          `json:"closing_time" validate:"required,datetime=15:04"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Capacity       int             `json:"capacity" validate:"required,gt=0"`
	Activate       bool            `json:"activate"`
}

type productionRequest struct {
	Open *bool `json:"open" validate:"required"`
}

type manualSaleRequest struct {
	CellName string `json:"cell_name" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type soldQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required"`
}

func (h *Handler) handleEditions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		editions, err := h.svc.ListEditions(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, editions)
	case http.MethodPost:
		var req editionRequest
		if !decodeRequest(w, r, &req, false) {
			return
		}
		edition, err := h.svc.CreateEdition(r.Context(), service.EditionInput{
			Name:           req.Name,
			ProductionDate: req.ProductionDate,
			ClosingTime:    req.ClosingTime,
			UnitPrice:      req.UnitPrice,
			Capacity:       req.Capacity,
			Activate:       req.Activate,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, edition)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleActiveEdition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	edition, err := h.svc.ActiveEdition(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edition)
}

func (h *Handler) handleEditionActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/api/editions/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	editionID := parts[0]

	switch parts[1] {
	case "activate":
		edition, err := h.svc.ActivateEdition(r.Context(), editionID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		log.Printf("edition activated edition_id=%s operator=%s", editionID, operatorFromContext(r.Context()))
		writeJSON(w, http.StatusOK, edition)
	case "production":
		var req productionRequest
		if !decodeRequest(w, r, &req, false) {
			return
		}
		edition, err := h.svc.SetProduction(r.Context(), editionID, *req.Open)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, edition)
	case "manual-sales":
		var req manualSaleRequest
		if !decodeRequest(w, r, &req, false) {
			return
		}
		order, err := h.svc.RecordManualSale(r.Context(), editionID, service.ManualSaleInput{CellName: req.CellName, Quantity: req.Quantity})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		log.Printf("manual sale recorded edition_id=%s order=%s quantity=%d operator=%s", editionID, order.OrderNumber, req.Quantity, operatorFromContext(r.Context()))
		writeJSON(w, http.StatusCreated, order)
	case "sold":
		var req soldQuantityRequest
		if !decodeRequest(w, r, &req, false) {
			return
		}
		stock, err := h.svc.RecordSoldQuantity(r.Context(), editionID, req.Quantity)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stock)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
