package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dogao/order-service/internal/models"
	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"
	"dogao/order-service/internal/store/sqlite"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword = "segredo"
	testSecret   = "test-secret"
)

type testEnv struct {
	svc     *service.Service
	auth    *Auth
	handler http.Handler
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	auth := NewAuth(AuthConfig{Username: "admin", PasswordHash: string(hash), Secret: testSecret})
	svc := service.New(st, service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC) },
	})
	handler := NewHandler(svc, Options{Auth: auth}).Routes()

	token, _, err := auth.Login("admin", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return &testEnv{svc: svc, auth: auth, handler: handler, token: token}
}

func (e *testEnv) activeEdition(t *testing.T) models.Edition {
	t.Helper()
	view, err := e.svc.CreateEdition(context.Background(), service.EditionInput{
		Name:           "Outubro",
		ProductionDate: "2026-10-17",
		ClosingTime:    "21:00",
		UnitPrice:      decimal.RequireFromString("19.99"),
		Capacity:       100,
		Activate:       true,
	})
	if err != nil {
		t.Fatalf("create edition: %v", err)
	}
	view, err = e.svc.SetProduction(context.Background(), view.EditionID, true)
	if err != nil {
		t.Fatalf("open production: %v", err)
	}
	return view.Edition
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v body=%s", err, rec.Body.String())
	}
	return resp
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d body=%s", status, rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", false), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/healthz", "", false), http.StatusMethodNotAllowed)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/orders", "", false)
	expectStatus(t, rec, http.StatusUnauthorized)
	if resp := decodeError(t, rec); resp.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %s", resp.Error.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	bad := httptest.NewRecorder()
	env.handler.ServeHTTP(bad, req)
	expectStatus(t, bad, http.StatusUnauthorized)

	expectStatus(t, env.do(t, http.MethodGet, "/api/orders", "", true), http.StatusOK)
	expectStatus(t, env.do(t, http.MethodGet, "/api/catalog", "", false), http.StatusOK)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"segredo"}`, false)
	expectStatus(t, rec, http.StatusOK)
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if err := env.auth.Verify(resp.Token); err != nil {
		t.Fatalf("expected issued token to verify: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"errada"}`, false)
	expectStatus(t, rec, http.StatusUnauthorized)
	if code := decodeError(t, rec).Error.Code; code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %s", code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	issued := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	now := issued
	auth := NewAuth(AuthConfig{Username: "admin", PasswordHash: string(hash), Secret: testSecret, TTL: time.Hour, Now: func() time.Time { return now }})
	token, _, err := auth.Login("admin", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := auth.Verify(token); err != nil {
		t.Fatalf("expected fresh token to verify: %v", err)
	}
	now = issued.Add(2 * time.Hour)
	if err := auth.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	other := NewAuth(AuthConfig{Username: "admin", PasswordHash: string(hash), Secret: "another-secret", Now: func() time.Time { return issued }})
	if err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to fail, got %v", err)
	}
}

func TestVoucherClaimAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	env.activeEdition(t)
	if _, err := env.svc.SeedVouchers(context.Background(), "DOG", 2); err != nil {
		t.Fatalf("seed vouchers: %v", err)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/vouchers/dog001/validate", "", false), http.StatusOK)

	rec := env.do(t, http.MethodPost, "/api/vouchers/DOG001/validate", `{"cpf":"529.982.247-26","name":"Maria","phone":"51988887777"}`, false)
	expectStatus(t, rec, http.StatusBadRequest)
	if resp := decodeError(t, rec); resp.Error.Code != "invalid_request" || !strings.Contains(resp.Error.Message, "cpf") {
		t.Fatalf("expected cpf rejection, got %+v", resp.Error)
	}

	claim := `{"cpf":"529.982.247-25","name":"Maria","phone":"51988887777","allows_contact":true}`
	expectStatus(t, env.do(t, http.MethodPost, "/api/vouchers/DOG001/validate", claim, false), http.StatusOK)

	rec = env.do(t, http.MethodPost, "/api/vouchers/DOG001/validate", claim, false)
	expectStatus(t, rec, http.StatusConflict)
	if resp := decodeError(t, rec); resp.Error.Code != "already_validated" || !strings.Contains(resp.Error.Message, "Maria") {
		t.Fatalf("expected already_validated naming Maria, got %+v", resp.Error)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/vouchers/DOG001/redeem", "", false), http.StatusUnauthorized)

	rec = env.do(t, http.MethodGet, "/api/vouchers/DOG002/redeemable", "", true)
	expectStatus(t, rec, http.StatusConflict)
	if code := decodeError(t, rec).Error.Code; code != "not_validated" {
		t.Fatalf("expected not_validated, got %s", code)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/vouchers/DOG001/redeemable", "", true), http.StatusOK)
	rec = env.do(t, http.MethodPost, "/api/vouchers/DOG001/redeem", `{"removed_ingredients":["milho"]}`, true)
	expectStatus(t, rec, http.StatusCreated)
	var order models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if !order.IsVoucher || order.CountInSales || len(order.OrderNumber) != 4 {
		t.Fatalf("unexpected voucher order %+v", order)
	}

	rec = env.do(t, http.MethodPost, "/api/vouchers/DOG001/redeem", "", true)
	expectStatus(t, rec, http.StatusConflict)
	if code := decodeError(t, rec).Error.Code; code != "already_redeemed" {
		t.Fatalf("expected already_redeemed, got %s", code)
	}

	rec = env.do(t, http.MethodGet, "/api/vouchers", "", true)
	expectStatus(t, rec, http.StatusOK)
	var list voucherListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode vouchers: %v", err)
	}
	if list.Total != 2 || list.Redeemed != 1 || list.Available != 1 {
		t.Fatalf("unexpected voucher counts %+v", list)
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/vouchers/DOG999/validate", "", false), http.StatusNotFound)
}

func TestVoucherQRCode(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.SeedVouchers(context.Background(), "DOG", 1); err != nil {
		t.Fatalf("seed vouchers: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/vouchers/DOG001/qr.png?size=128", "", false)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatal("expected a PNG body")
	}

	expectStatus(t, env.do(t, http.MethodGet, "/api/vouchers/NOPE01/qr.png", "", false), http.StatusNotFound)
}

func TestTicketOrderReportsUnavailableNumbers(t *testing.T) {
	env := newTestEnv(t)
	env.activeEdition(t)
	if _, err := env.svc.SeedTickets(context.Background(), 1, 3); err != nil {
		t.Fatalf("seed tickets: %v", err)
	}
	expectStatus(t, env.do(t, http.MethodPost, "/api/tickets:mark-used", `{"numbers":["0002"]}`, true), http.StatusOK)

	body := `{"customer_name":"Pedro","payment_method":"ticket_dogao","ticket_numbers":["0001","0002"],"items":[{"quantity":2}]}`
	rec := env.do(t, http.MethodPost, "/api/orders", body, true)
	expectStatus(t, rec, http.StatusConflict)

	var resp struct {
		Error struct {
			Code    string              `json:"code"`
			Details map[string][]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "tickets_unavailable" {
		t.Fatalf("expected tickets_unavailable, got %s", resp.Error.Code)
	}
	if got := resp.Error.Details["unavailable"]; len(got) != 1 || got[0] != "0002" {
		t.Fatalf("expected [0002], got %v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/tickets:check", `{"numbers":["0001","0002","0009"]}`, true)
	expectStatus(t, rec, http.StatusOK)
	var check store.TicketCheck
	if err := json.Unmarshal(rec.Body.Bytes(), &check); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if len(check.Available) != 1 || check.Available[0] != "0001" || len(check.Unavailable) != 2 {
		t.Fatalf("unexpected check %+v", check)
	}

	rec = env.do(t, http.MethodPost, "/api/tickets:check", `{"numbers":["12"]}`, true)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestCreateOrderRejectsBadPayloads(t *testing.T) {
	env := newTestEnv(t)
	env.activeEdition(t)

	rec := env.do(t, http.MethodPost, "/api/orders", `{"customer_name":"A","payment_method":"pix","items":[{"quantity":1}],"extra":true}`, true)
	expectStatus(t, rec, http.StatusBadRequest)
	if code := decodeError(t, rec).Error.Code; code != "invalid_json" {
		t.Fatalf("expected invalid_json, got %s", code)
	}

	rec = env.do(t, http.MethodPost, "/api/orders", `{"customer_name":"A","payment_method":"pix","items":[]}`, true)
	expectStatus(t, rec, http.StatusBadRequest)
	if code := decodeError(t, rec).Error.Code; code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %s", code)
	}

	rec = env.do(t, http.MethodPost, "/api/orders", `{"customer_name":"A","payment_method":"cheque","items":[{"quantity":1}]}`, true)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.activeEdition(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/orders", `{"customer_name":"Ana","customer_phone":"51911112222","payment_method":"pix","items":[{"quantity":2,"removed_ingredients":["Ervilha"]}]}`, true)
		expectStatus(t, rec, http.StatusCreated)
	}

	rec := env.do(t, http.MethodGet, "/api/orders?status=pending", "", true)
	expectStatus(t, rec, http.StatusOK)
	var list orderListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Count != 2 || list.Quantity != 4 || !list.TotalValue.Equal(decimal.RequireFromString("79.96")) {
		t.Fatalf("unexpected totals %+v", list)
	}
	orderID := list.Orders[0].OrderID

	expectStatus(t, env.do(t, http.MethodGet, "/api/orders?status=baking", "", true), http.StatusBadRequest)

	rec = env.do(t, http.MethodPatch, "/api/orders/"+orderID+"/status", `{"action":"move_to_ready"}`, true)
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/queues/expedition", "", true)
	expectStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if list.Count != 1 || list.Orders[0].OrderID != orderID {
		t.Fatalf("expected the ready order on the expedition board, got %+v", list)
	}

	rec = env.do(t, http.MethodPatch, "/api/orders/"+orderID+"/status", `{"action":"assign_delivery","delivery_person_id":"x"}`, true)
	expectStatus(t, rec, http.StatusNotFound)
	if code := decodeError(t, rec).Error.Code; code != "delivery_person_not_found" {
		t.Fatalf("expected delivery_person_not_found, got %s", code)
	}

	rec = env.do(t, http.MethodPatch, "/api/orders/"+orderID+"/status", `{"action":"start_preparing"}`, true)
	expectStatus(t, rec, http.StatusConflict)
	if code := decodeError(t, rec).Error.Code; code != "invalid_state" {
		t.Fatalf("expected invalid_state, got %s", code)
	}

	expectStatus(t, env.do(t, http.MethodPatch, "/api/orders/missing/status", `{"action":"cancel"}`, true), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/queues/bakery", "", true), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/orders/"+orderID, "", true), http.StatusOK)
}

func TestEditionsOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/editions/active", "", true)
	expectStatus(t, rec, http.StatusConflict)
	if code := decodeError(t, rec).Error.Code; code != "no_active_edition" {
		t.Fatalf("expected no_active_edition, got %s", code)
	}

	rec = env.do(t, http.MethodPost, "/api/editions", `{"name":"Novembro","production_date":"2026-11-14","closing_time":"2100","unit_price":"20","capacity":10}`, true)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, "/api/editions", `{"name":"Novembro","production_date":"2026-11-14","closing_time":"21:00","unit_price":"20","capacity":10,"activate":true}`, true)
	expectStatus(t, rec, http.StatusCreated)
	var edition service.EditionView
	if err := json.Unmarshal(rec.Body.Bytes(), &edition); err != nil {
		t.Fatalf("decode edition: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/editions/"+edition.EditionID+"/manual-sales", `{"cell_name":"Jovens - Kelvin","quantity":9}`, true)
	expectStatus(t, rec, http.StatusCreated)

	rec = env.do(t, http.MethodGet, "/api/editions/active", "", true)
	expectStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(rec.Body.Bytes(), &edition); err != nil {
		t.Fatalf("decode edition: %v", err)
	}
	if edition.Stock.Available != 1 || !edition.Stock.LowStock {
		t.Fatalf("expected one left and low stock, got %+v", edition.Stock)
	}

	rec = env.do(t, http.MethodPost, "/api/editions/"+edition.EditionID+"/production", `{"open":true}`, true)
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, env.do(t, http.MethodPost, "/api/editions/"+edition.EditionID+"/production", `{}`, true), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/editions/unknown/activate", "", true), http.StatusNotFound)

	rec = env.do(t, http.MethodPost, "/api/editions/"+edition.EditionID+"/sold", `{"quantity":-1}`, true)
	expectStatus(t, rec, http.StatusOK)
	var stock models.Stock
	if err := json.Unmarshal(rec.Body.Bytes(), &stock); err != nil {
		t.Fatalf("decode stock: %v", err)
	}
	if stock.Available != 2 {
		t.Fatalf("expected two available, got %d", stock.Available)
	}

	rec = env.do(t, http.MethodPost, "/api/editions/"+edition.EditionID+"/sold", `{"quantity":-500}`, true)
	expectStatus(t, rec, http.StatusBadRequest)
	if resp := decodeError(t, rec); resp.Error.Code != "invalid_request" || !strings.Contains(resp.Error.Message, "quantity") {
		t.Fatalf("expected quantity rejection, got %+v", resp.Error)
	}
}

func TestDeliveryPersonsOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/delivery-persons", `{"name":"Carlos","phone":"51966665555"}`, true)
	expectStatus(t, rec, http.StatusCreated)
	var person models.DeliveryPerson
	if err := json.Unmarshal(rec.Body.Bytes(), &person); err != nil {
		t.Fatalf("decode person: %v", err)
	}
	if !person.IsActive {
		t.Fatal("expected new delivery person to be active")
	}

	rec = env.do(t, http.MethodPut, "/api/delivery-persons/"+person.DeliveryPersonID, `{"is_active":false}`, true)
	expectStatus(t, rec, http.StatusOK)
	if err := json.Unmarshal(rec.Body.Bytes(), &person); err != nil {
		t.Fatalf("decode person: %v", err)
	}
	if person.IsActive || person.Name != "Carlos" {
		t.Fatalf("unexpected update result %+v", person)
	}

	expectStatus(t, env.do(t, http.MethodPut, "/api/delivery-persons/missing", `{"name":"Zé"}`, true), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/customers", "", true), http.StatusOK)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&service.InvalidInputError{Field: "cpf", Reason: "invalid checksum"}, http.StatusBadRequest, "invalid_request"},
		{&service.AlreadyValidatedError{CustomerName: "Maria"}, http.StatusConflict, "already_validated"},
		{fmt.Errorf("wrap: %w", store.ErrAlreadyRedeemed), http.StatusConflict, "already_redeemed"},
		{store.ErrNotValidated, http.StatusConflict, "not_validated"},
		{&store.TicketsUnavailableError{Numbers: []string{"0001"}}, http.StatusConflict, "tickets_unavailable"},
		{store.ErrVoucherNotFound, http.StatusNotFound, "voucher_not_found"},
		{store.ErrNoActiveEdition, http.StatusConflict, "no_active_edition"},
		{store.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{store.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{store.ErrDeliveryPersonInactive, http.StatusConflict, "delivery_person_inactive"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range tests {
		status, code, _ := mapError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("%v: expected %d/%s, got %d/%s", tc.err, tc.status, tc.code, status, code)
		}
	}
}

func TestIsPublicEndpoint(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/healthz", true},
		{http.MethodPost, "/api/auth/login", true},
		{http.MethodGet, "/api/catalog", true},
		{http.MethodGet, "/api/vouchers/DOG001/validate", true},
		{http.MethodPost, "/api/vouchers/DOG001/validate", true},
		{http.MethodGet, "/api/vouchers/DOG001/qr.png", true},
		{http.MethodPost, "/api/vouchers/DOG001/redeem", false},
		{http.MethodGet, "/api/vouchers", false},
		{http.MethodPost, "/api/orders", false},
		{http.MethodOptions, "/api/orders", true},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := isPublicEndpoint(req); got != tc.want {
			t.Fatalf("%s %s: expected %v, got %v", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestRateLimiterPublicBucket(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{IPPerMinute: 600, IPBurst: 100, PublicPerMinute: 1, PublicBurst: 1})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := limiter.Middleware(next)

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
	if rec := send("/api/vouchers/DOG001/validate"); rec.Code != http.StatusOK {
		t.Fatalf("expected first public request to pass, got %d", rec.Code)
	}
	rec := send("/api/vouchers/DOG002/validate")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second public request to be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}
	if rec := send("/api/orders"); rec.Code != http.StatusOK {
		t.Fatalf("expected staff route to pass, got %d", rec.Code)
	}
}

func TestTokenLimiterRefills(t *testing.T) {
	limiter := newTokenLimiter(60, 1)
	now := time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.allow("1.2.3.4") {
		t.Fatal("expected first request to pass")
	}
	if limiter.allow("1.2.3.4") {
		t.Fatal("expected burst to be exhausted")
	}
	now = now.Add(time.Second)
	if !limiter.allow("1.2.3.4") {
		t.Fatal("expected a token after one second")
	}
}

func TestTokenLimiterPrunesIdleBuckets(t *testing.T) {
	limiter := newTokenLimiter(60, 2)
	now := time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.allow("idle")
	now = now.Add(time.Minute)
	for i := 0; i < pruneEvery; i++ {
		limiter.allow("busy")
		now = now.Add(time.Second)
	}
	if _, ok := limiter.buckets["idle"]; ok {
		t.Fatal("expected the idle bucket to be pruned")
	}
	if _, ok := limiter.buckets["busy"]; !ok {
		t.Fatal("expected the busy bucket to stay")
	}
}

func TestCustomValidators(t *testing.T) {
	if err := validate.Var("529.982.247-25", "cpf"); err != nil {
		t.Fatalf("expected valid cpf, got %v", err)
	}
	if err := validate.Var("529.982.247-26", "cpf"); err == nil {
		t.Fatal("expected bad check digits to fail")
	}
	if err := validate.Var("0042", "ticket_number"); err != nil {
		t.Fatalf("expected valid ticket number, got %v", err)
	}
	if err := validate.Var("42a", "ticket_number"); err == nil {
		t.Fatal("expected malformed ticket number to fail")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected a failed registration to panic")
		}
	}()
	mustRegister(validate, "", func(validator.FieldLevel) bool { return true })
}
