package httpapi

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

type claimRequest struct {
	CPF           string `json:"cpf" validate:"required,cpf"`
	Name          string `json:"name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,min=8,max=20"`
	Address       string `json:"address" validate:"max=300"`
	KnowsChurch   bool   `json:"knows_church"`
	AllowsContact bool   `json:"allows_contact"`
}

type redeemRequest struct {
	RemovedIngredients []string `json:"removed_ingredients" validate:"max=20"`
	Observations       string   `json:"observations" validate:"max=500"`
}

type ticketsRequest struct {
	Numbers []string `json:"numbers" validate:"required,min=1,max=500,dive,ticket_number"`
}

type voucherListResponse struct {
	Vouchers  []models.VoucherListing `json:"vouchers"`
	Total     int                     `json:"total"`
	Available int                     `json:"available"`
	Validated int                     `json:"validated"`
	Redeemed  int                     `json:"redeemed"`
}

type redeemableResponse struct {
	Voucher  models.Voucher       `json:"voucher"`
	Usage    *models.VoucherUsage `json:"usage"`
	Customer *models.Customer     `json:"customer"`
}

func (h *Handler) handleVouchers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	listings, err := h.svc.ListVouchers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := voucherListResponse{Vouchers: listings, Total: len(listings)}
	if resp.Vouchers == nil {
		resp.Vouchers = []models.VoucherListing{}
	}
	for _, l := range listings {
		switch l.ClaimStatus {
		case models.ClaimRedeemed:
			resp.Redeemed++
		case models.ClaimValidated:
			resp.Validated++
		default:
			resp.Available++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVoucherActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/vouchers/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	code := strings.ToUpper(parts[0])
	switch parts[1] {
	case "validate":
		switch r.Method {
		case http.MethodGet:
			h.handleCheckVoucher(w, r, code)
		case http.MethodPost:
			h.handleValidateVoucher(w, r, code)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "redeemable":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRedeemableVoucher(w, r, code)
	case "redeem":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRedeemVoucher(w, r, code)
	case "qr.png":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleVoucherQR(w, r, code)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCheckVoucher(w http.ResponseWriter, r *http.Request, code string) {
	voucher, err := h.svc.CheckVoucher(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"voucher": voucher, "valid": true})
}

func (h *Handler) handleValidateVoucher(w http.ResponseWriter, r *http.Request, code string) {
	var req claimRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	result, err := h.svc.ValidateVoucher(r.Context(), code, service.ClaimInput{
		Name:          req.Name,
		Phone:         req.Phone,
		CPF:           req.CPF,
		Address:       req.Address,
		KnowsChurch:   req.KnowsChurch,
		AllowsContact: req.AllowsContact,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRedeemableVoucher(w http.ResponseWriter, r *http.Request, code string) {
	claim, err := h.svc.RedeemableVoucher(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redeemableResponse{Voucher: claim.Voucher, Usage: claim.Usage, Customer: claim.Customer})
}

func (h *Handler) handleRedeemVoucher(w http.ResponseWriter, r *http.Request, code string) {
	var req redeemRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}
	order, err := h.svc.RedeemVoucher(r.Context(), code, service.RedeemInput{
		RemovedIngredients: req.RemovedIngredients,
		Observations:       req.Observations,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// handleVoucherQR renders the voucher code itself, which the counter
// scanner feeds back into the redeem flow.
func (h *Handler) handleVoucherQR(w http.ResponseWriter, r *http.Request, code string) {
	if _, err := h.svc.CheckVoucher(r.Context(), code); err != nil && !isClaimConflict(err) {
		writeServiceError(w, r, err)
		return
	}
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	size := qrSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 64 && v <= 1024 {
			size = v
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func isClaimConflict(err error) bool {
	status, _, _ := mapError(err)
	return status == http.StatusConflict
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var used *bool
	if raw := strings.TrimSpace(r.URL.Query().Get("used")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "used must be a boolean")
			return
		}
		used = &value
	}
	overview, err := h.svc.ListTickets(r.Context(), used)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleCheckTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ticketsRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	check, err := h.svc.CheckTickets(r.Context(), req.Numbers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) handleMarkTicketsUsed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ticketsRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	marked, err := h.svc.MarkTicketsUsed(r.Context(), req.Numbers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	counts, err := h.svc.TicketCounts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Marked int                `json:"marked"`
		Counts store.TicketCounts `json:"counts"`
	}{Marked: marked, Counts: counts})
}
