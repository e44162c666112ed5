package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"whatsapp-gateway/types"
	"whatsapp-gateway/whatsapp"

	"github.com/rs/zerolog"
)

type fakeService struct {
	pairResult types.PairResult
	pairErr    error
	deleted    []string
	deleteErr  error
	active     types.ActiveSessions
	statuses   []types.ConnectionStatus
	bulkErr    error
}

func (f *fakeService) Pair(ctx context.Context, number string) (types.PairResult, error) {
	return f.pairResult, f.pairErr
}

func (f *fakeService) Delete(ctx context.Context, number string) error {
	f.deleted = append(f.deleted, number)
	return f.deleteErr
}

func (f *fakeService) Active() types.ActiveSessions { return f.active }

func (f *fakeService) ConnectAll(ctx context.Context) ([]types.ConnectionStatus, error) {
	return f.statuses, f.bulkErr
}

func (f *fakeService) ReconnectAll(ctx context.Context) ([]types.ConnectionStatus, error) {
	return f.statuses, f.bulkErr
}

func do(t *testing.T, svc Service, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	NewServer(svc, zerolog.Nop()).Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestPairReturnsCode(t *testing.T) {
	svc := &fakeService{pairResult: types.PairResult{Code: "ABCD-1234"}}
	rec := do(t, svc, http.MethodGet, "/?number=1234567890")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body types.PairResult
	decode(t, rec, &body)
	if body.Code != "ABCD-1234" {
		t.Fatalf("code = %q, want ABCD-1234", body.Code)
	}
}

func TestPairMissingNumber(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPairInvalidNumber(t *testing.T) {
	svc := &fakeService{pairErr: whatsapp.ErrInvalidNumber}
	rec := do(t, svc, http.MethodGet, "/?number=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPairServiceUnavailable(t *testing.T) {
	svc := &fakeService{pairErr: whatsapp.ErrPairingCodeFailed}
	rec := do(t, svc, http.MethodGet, "/?number=1234567890")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != "Service Unavailable" {
		t.Fatalf("error = %q, want Service Unavailable", body["error"])
	}
}

func TestPairAlreadyConnected(t *testing.T) {
	svc := &fakeService{pairResult: types.PairResult{Status: types.StatusAlreadyConnected}}
	rec := do(t, svc, http.MethodGet, "/?number=1234567890")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body types.PairResult
	decode(t, rec, &body)
	if body.Status != types.StatusAlreadyConnected {
		t.Fatalf("status = %q, want already_connected", body.Status)
	}
}

func TestActive(t *testing.T) {
	svc := &fakeService{active: types.ActiveSessions{Count: 2, Numbers: []string{"111", "222"}}}
	rec := do(t, svc, http.MethodGet, "/active")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body types.ActiveSessions
	decode(t, rec, &body)
	if body.Count != 2 || len(body.Numbers) != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestConnectAll(t *testing.T) {
	svc := &fakeService{statuses: []types.ConnectionStatus{
		{Number: "111", Status: types.StatusAlreadyConnected},
		{Number: "222", Status: types.StatusQueued},
	}}
	rec := do(t, svc, http.MethodGet, "/connect-all")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Results []types.ConnectionStatus `json:"results"`
	}
	decode(t, rec, &body)
	if len(body.Results) != 2 || body.Results[1].Status != types.StatusQueued {
		t.Fatalf("results = %+v", body.Results)
	}
}

func TestDeleteSession(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, svc, http.MethodDelete, "/session/1234567890")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "1234567890" {
		t.Fatalf("deleted = %v", svc.deleted)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodPost, "/active")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
