package httpapi

import (
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"log"
	"net/http"
	"strings"

	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"
)

type Handler struct {
	svc      *service.Service
	auth     *Auth
	realtime http.Handler
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type Options struct {
	Auth     *Auth
	Realtime http.Handler
}

func NewHandler(svc *service.Service, options Options) *Handler {
	return &Handler{
		svc:      svc,
		auth:     options.Auth,
		realtime: options.Realtime,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/catalog", h.handleCatalog)
	mux.HandleFunc("/api/whatsapp/status", h.handleWhatsAppStatus)
	mux.HandleFunc("/api/vouchers", h.handleVouchers)
	mux.HandleFunc("/api/vouchers/", h.handleVoucherActions)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets:check", h.handleCheckTickets)
	mux.HandleFunc("/api/tickets:mark-used", h.handleMarkTicketsUsed)
	mux.HandleFunc("/api/orders", h.handleOrders)
	mux.HandleFunc("/api/orders/", h.handleOrderActions)
	mux.HandleFunc("/api/queues/", h.handleQueue)
	mux.HandleFunc("/api/editions", h.handleEditions)
	mux.HandleFunc("/api/editions/active", h.handleActiveEdition)
	mux.HandleFunc("/api/editions/", h.handleEditionActions)
	mux.HandleFunc("/api/delivery-persons", h.handleDeliveryPersons)
	mux.HandleFunc("/api/delivery-persons/", h.handleDeliveryPersonActions)
	mux.HandleFunc("/api/customers", h.handleCustomers)
	if h.realtime != nil {
		mux.Handle("/realtime/", h.realtime)
	}

	var handler http.Handler = mux
	if h.auth != nil {
		handler = h.auth.Middleware(handler)
	}
	return handler
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Catalog())
}

func (h *Handler) handleWhatsAppStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, err := h.svc.NotifierState(r.Context())
	if err != nil {
		log.Printf("whatsapp status error: %v", err)
		writeJSON(w, http.StatusOK, map[string]string{"state": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

// pathParts splits the path below prefix into its segments.
func pathParts(r *http.Request, prefix string) []string {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// decodeRequest reads a JSON body into target and validates its tags.
// An empty body is accepted when allowEmpty is set.
func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}, allowEmpty bool) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return false
		}
	}
	if err := validate.Struct(target); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", validationMessage(err))
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	var already *service.AlreadyValidatedError
	var invalidInput *service.InvalidInputError
	switch {
	case errors.As(err, &invalidInput):
		return http.StatusBadRequest, "invalid_request", invalidInput.Error()
	case errors.As(err, &already):
		return http.StatusConflict, "already_validated", already.Error()
	case errors.Is(err, store.ErrAlreadyValidated):
		return http.StatusConflict, "already_validated", "voucher already validated"
	case errors.Is(err, store.ErrVoucherNotFound):
		return http.StatusNotFound, "voucher_not_found", "voucher not found"
	case errors.Is(err, store.ErrAlreadyRedeemed):
		return http.StatusConflict, "already_redeemed", "voucher already redeemed"
	case errors.Is(err, store.ErrNotValidated):
		return http.StatusConflict, "not_validated", "voucher must be validated before redemption"
	case errors.Is(err, store.ErrTicketsUnavailable):
		return http.StatusConflict, "tickets_unavailable", err.Error()
	case errors.Is(err, store.ErrNoActiveEdition):
		return http.StatusConflict, "no_active_edition", "no active edition"
	case errors.Is(err, store.ErrEditionNotFound):
		return http.StatusNotFound, "edition_not_found", "edition not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found", "order not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", err.Error()
	case errors.Is(err, store.ErrOrderNumbersExhausted):
		return http.StatusConflict, "order_numbers_exhausted", "order numbers exhausted for this deployment"
	case errors.Is(err, store.ErrDeliveryPersonNotFound):
		return http.StatusNotFound, "delivery_person_not_found", "delivery person not found"
	case errors.Is(err, store.ErrDeliveryPersonInactive):
		return http.StatusConflict, "delivery_person_inactive", "delivery person is inactive"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
	resp := errorResponse{
		RequestID: requestIDFromRequest(r),
		Error:     responseError{Code: code, Message: msg},
	}
	var unavailable *store.TicketsUnavailableError
	if errors.As(err, &unavailable) {
		resp.Error.Details = map[string][]string{"unavailable": unavailable.Numbers}
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
