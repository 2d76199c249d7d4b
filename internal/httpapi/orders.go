package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"

	"github.com/shopspring/decimal"
)

type orderItemRequest struct {
	ItemName           string           `json:"item_name" validate:"max=120"`
	Quantity           int              `json:"quantity" validate:"required,gt=0,lte=500"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	RemovedIngredients []string         `json:"removed_ingredients" validate:"max=20"`
	Observations       string           `json:"observations" validate:"max=500"`
	CountInSales       *bool            `json:"count_in_sales"`
}

type createOrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required,max=120"`
	CustomerPhone   string             `json:"customer_phone" validate:"max=20"`
	CustomerAddress string             `json:"customer_address" validate:"max=300"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	IsTelevendas    bool               `json:"is_televendas"`
	TicketNumbers   []string           `json:"ticket_numbers" validate:"omitempty,max=500,dive,ticket_number"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type transitionRequest struct {
	Action           string `json:"action" validate:"required"`
	DeliveryPersonID string `json:"delivery_person_id"`
}

type orderListResponse struct {
	Orders     []models.Order  `json:"orders"`
	Count      int             `json:"count"`
	Quantity   int             `json:"quantity"`
	TotalValue decimal.Decimal `json:"total_value"`
}

func newOrderList(orders []models.Order) orderListResponse {
	resp := orderListResponse{Orders: orders, Count: len(orders), TotalValue: decimal.Zero}
	if resp.Orders == nil {
		resp.Orders = []models.Order{}
	}
	for _, order := range orders {
		resp.Quantity += order.Quantity()
		resp.TotalValue = resp.TotalValue.Add(order.TotalValue)
	}
	return resp
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListOrders(w, r)
	case http.MethodPost:
		h.handleCreateOrder(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	input := service.CreateOrderInput{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		PaymentMethod:   req.PaymentMethod,
		IsTelevendas:    req.IsTelevendas,
		TicketNumbers:   req.TicketNumbers,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.OrderItemInput{
			ItemName:           item.ItemName,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			RemovedIngredients: item.RemovedIngredients,
			Observations:       item.Observations,
			CountInSales:       item.CountInSales,
		})
	}
	order, err := h.svc.CreateOrder(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// parseOrderFilter reads status (comma separated), delivery and edition_id.
func parseOrderFilter(r *http.Request) (store.OrderFilter, bool) {
	query := r.URL.Query()
	var filter store.OrderFilter
	for _, raw := range query["status"] {
		for _, status := range strings.Split(raw, ",") {
			status = strings.TrimSpace(status)
			if status == "" {
				continue
			}
			if !models.IsValidStatus(status) {
				return store.OrderFilter{}, false
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := strings.TrimSpace(query.Get("delivery")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return store.OrderFilter{}, false
		}
		filter.Televendas = &value
	}
	filter.EditionID = strings.TrimSpace(query.Get("edition_id"))
	return filter, true
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseOrderFilter(r)
	if !ok {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "status must be a known order status and delivery a boolean")
		return
	}
	orders, err := h.svc.ListOrders(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderList(orders))
}

func (h *Handler) handleOrderActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/orders/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		order, err := h.svc.GetOrder(r.Context(), parts[0])
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPatch && r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTransition(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, orderID string) {
	var req transitionRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	order, err := h.svc.Transition(r.Context(), service.TransitionInput{
		OrderID:          orderID,
		Action:           strings.TrimSpace(req.Action),
		DeliveryPersonID: req.DeliveryPersonID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r, "/api/queues/")
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if _, ok := service.QueueFilter(parts[0]); !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	orders, err := h.svc.Queue(r.Context(), parts[0])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderList(orders))
}
