package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calbook/calbook/libs/auth"
	"github.com/calbook/calbook/services/booking-service/internal/booking"
	"github.com/calbook/calbook/services/booking-service/internal/model"
	"github.com/calbook/calbook/services/booking-service/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

type fakeEngine struct {
	slots    []model.Slot
	appts    []model.Appointment
	err      error
	lastReq  booking.BookingRequest
	lastDate time.Time
	lastUser string
}

func (f *fakeEngine) ListAvailableSlots(_ context.Context, sellerID string, date time.Time) ([]model.Slot, error) {
	f.lastUser = sellerID
	f.lastDate = date
	return f.slots, f.err
}

func (f *fakeEngine) BookAppointment(_ context.Context, req booking.BookingRequest) (model.Appointment, error) {
	f.lastReq = req
	if f.err != nil {
		return model.Appointment{}, f.err
	}
	return model.Appointment{
		ID:          "appt-1",
		Title:       req.Title,
		StartTime:   req.Slot.Start,
		EndTime:     req.Slot.End,
		SellerID:    req.SellerID,
		BuyerID:     req.BuyerID,
		Status:      model.StatusConfirmed,
		MeetingLink: "https://meet.google.com/abc",
		Seller:      model.User{ID: req.SellerID, Email: "seller@example.com"},
		Buyer:       model.User{ID: req.BuyerID, Email: "buyer@example.com"},
	}, nil
}

func (f *fakeEngine) ListAppointments(_ context.Context, userID string) ([]model.Appointment, error) {
	f.lastUser = userID
	return f.appts, f.err
}

type fakeAccounts struct {
	users    map[string]model.User
	upserted storage.CredentialUpsert
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAccounts) UpsertCredential(_ context.Context, in storage.CredentialUpsert) (model.User, error) {
	f.upserted = in
	return model.User{ID: in.ID, Email: in.Email, Name: in.Name, HasCalendar: true}, nil
}

func (f *fakeAccounts) SetRole(_ context.Context, id, role string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u.Role = role
	f.users[id] = u
	return u, nil
}

func (f *fakeAccounts) ListSellers(context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.Role == model.RoleSeller && u.HasCalendar {
			out = append(out, u)
		}
	}
	return out, nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeEngine, *fakeAccounts) {
	t.Helper()
	engine := &fakeEngine{}
	accounts := &fakeAccounts{users: map[string]model.User{
		"seller-1": {ID: "seller-1", Name: "Sam", Email: "seller@example.com", Role: model.RoleSeller, HasCalendar: true},
		"buyer-1":  {ID: "buyer-1", Name: "Bea", Email: "buyer@example.com"},
	}}
	h := New(engine, accounts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	h.Register(mux, auth.Require(auth.NewVerifier(testSecret, nil)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, engine, accounts
}

func tokenFor(t *testing.T, userID, email string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Email:            email,
		Name:             "Bea",
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	return token
}

func do(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestAvailability(t *testing.T) {
	srv, engine, _ := newServer(t)
	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	engine.slots = []model.Slot{{Start: start, End: start.Add(time.Hour)}}

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/availability?seller_id=seller-1&date=2026-03-04", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	items := decode[[]slotItem](t, resp)
	if len(items) != 1 || items[0].Start != "2026-03-04T09:00:00Z" || items[0].End != "2026-03-04T10:00:00Z" {
		t.Fatalf("unexpected slots %+v", items)
	}
	if engine.lastUser != "seller-1" || engine.lastDate.Day() != 4 {
		t.Fatalf("engine got seller=%q date=%s", engine.lastUser, engine.lastDate)
	}

	for _, q := range []string{"date=2026-03-04", "seller_id=seller-1", "seller_id=seller-1&date=03/04/2026"} {
		resp := do(t, http.MethodGet, srv.URL+"/api/v1/availability?"+q, "", "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestAvailabilityErrorMapping(t *testing.T) {
	srv, engine, _ := newServer(t)
	cases := map[error]int{
		booking.ErrNotFound:    http.StatusNotFound,
		booking.ErrCredential:  http.StatusPreconditionFailed,
		booking.ErrProvider:    http.StatusBadGateway,
		booking.ErrPersistence: http.StatusInternalServerError,
		booking.ErrConflict:    http.StatusConflict,
		booking.ErrValidation:  http.StatusBadRequest,
	}
	for sentinel, want := range cases {
		engine.err = fmt.Errorf("%w: detail", sentinel)
		resp := do(t, http.MethodGet, srv.URL+"/api/v1/availability?seller_id=seller-1&date=2026-03-04", "", "")
		if resp.StatusCode != want {
			t.Fatalf("%v: expected %d, got %d", sentinel, want, resp.StatusCode)
		}
		body := decode[map[string]string](t, resp)
		if want >= 500 && strings.Contains(body["error"], "detail") {
			t.Fatalf("internal detail leaked: %q", body["error"])
		}
	}
}

func TestCreateAppointment(t *testing.T) {
	srv, engine, _ := newServer(t)
	token := tokenFor(t, "buyer-1", "buyer@example.com")
	body := `{"seller_id":"seller-1","title":"Intro call","start_time":"2026-03-04T10:00:00Z","end_time":"2026-03-04T11:00:00Z"}`

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", token, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	item := decode[appointmentItem](t, resp)
	if item.Status != "confirmed" || item.MeetingLink == "" || item.Buyer.ID != "buyer-1" || item.Seller.ID != "seller-1" {
		t.Fatalf("unexpected appointment %+v", item)
	}
	if engine.lastReq.BuyerID != "buyer-1" || !engine.lastReq.Slot.Start.Equal(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected engine request %+v", engine.lastReq)
	}
}

func TestCreateAppointmentRejects(t *testing.T) {
	srv, engine, _ := newServer(t)
	token := tokenFor(t, "buyer-1", "buyer@example.com")

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", "", `{}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	cases := []struct {
		body string
		want int
	}{
		{`{"seller_id":"seller-1","title":"x","start_time":"2026-03-04T10:00:00Z"}`, http.StatusBadRequest},
		{`{"seller_id":"seller-1","title":"x","start_time":"tomorrow","end_time":"2026-03-04T11:00:00Z"}`, http.StatusBadRequest},
		{`{"seller_id":"seller-1","buyer_id":"someone-else","title":"x","start_time":"2026-03-04T10:00:00Z","end_time":"2026-03-04T11:00:00Z"}`, http.StatusForbidden},
		{`{"seller_id":"seller-1","unknown":1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", token, tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.want, resp.StatusCode)
		}
	}
	if engine.lastReq.SellerID != "" {
		t.Fatal("engine should not have been called")
	}

	engine.err = errors.Join(booking.ErrConflict)
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/appointments", token,
		`{"seller_id":"seller-1","title":"x","start_time":"2026-03-04T10:00:00Z","end_time":"2026-03-04T11:00:00Z"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListAppointments(t *testing.T) {
	srv, engine, _ := newServer(t)
	token := tokenFor(t, "buyer-1", "buyer@example.com")

	engine.appts = []model.Appointment{}
	resp := do(t, http.MethodGet, srv.URL+"/api/v1/appointments", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("expected empty array, got %s", raw)
	}
	if engine.lastUser != "buyer-1" {
		t.Fatalf("listed for %q", engine.lastUser)
	}
}

func TestAccountRoutes(t *testing.T) {
	srv, _, accounts := newServer(t)
	token := tokenFor(t, "buyer-1", "Buyer@Example.com")

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/sellers", "", "")
	sellers := decode[[]userItem](t, resp)
	if len(sellers) != 1 || sellers[0].ID != "seller-1" {
		t.Fatalf("unexpected sellers %+v", sellers)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/auth/store-token", token, `{"refresh_token":"1//abc"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store-token: expected 200, got %d", resp.StatusCode)
	}
	if accounts.upserted.Email != "buyer@example.com" || accounts.upserted.RefreshToken != "1//abc" || accounts.upserted.ID != "buyer-1" {
		t.Fatalf("unexpected upsert %+v", accounts.upserted)
	}
	resp = do(t, http.MethodPost, srv.URL+"/api/v1/auth/store-token", token, `{"refresh_token":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty token: expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/seller/role", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seller/role: expected 200, got %d", resp.StatusCode)
	}
	if accounts.users["buyer-1"].Role != model.RoleSeller {
		t.Fatal("role was not updated")
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/me", token, "")
	me := decode[map[string]any](t, resp)
	if me["id"] != "buyer-1" || me["role"] != "seller" {
		t.Fatalf("unexpected profile %v", me)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/me", tokenFor(t, "ghost", "g@example.com"), "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}
}
