package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"khata/internal/auth"
	"khata/internal/blob/local"
	"khata/internal/services"
	"khata/internal/storage"
)

const (
	testUser     = "admin"
	testPassword = "changeme"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http_test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	uploadsDir := t.TempDir()
	blobs, err := local.NewStore(uploadsDir, "http://localhost:8080")
	if err != nil {
		t.Fatalf("local.NewStore() error = %v", err)
	}

	gate := auth.NewGate(testUser, testPassword, "test-jwt-secret", time.Hour)
	svc := services.NewRecordService(repo, blobs, nil)

	s := NewServer("127.0.0.1:0", gate, svc, Options{UploadsDir: uploadsDir})
	t.Cleanup(func() { s.cacheManager.Stop(); s.loginLimiter.Stop(); s.apiLimiter.Stop() })
	return s
}

func doRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": testUser, "password": testPassword})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := doRequest(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("login response has no token")
	}
	return token
}

// multipartBody builds a record form; filename "" omits the file part.
func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(fieldBillImage, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func createRecord(t *testing.T, s *Server, token, user, amount string) map[string]any {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		fieldUserName:     user,
		fieldMobileNumber: "9876543210",
		fieldAmount:       amount,
		fieldLocation:     "Chennai",
	}, "bill.jpg", "jpeg-bytes")

	req := httptest.NewRequest(http.MethodPost, "/api/finance", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := doRequest(t, s, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	return env.Data.(map[string]any)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	login(t, s)

	body, _ := json.Marshal(map[string]string{"username": testUser, "password": "wrong"})
	rec := doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials status = %d, want 401", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == "" {
		t.Errorf("bad credentials envelope = %+v, want failure with error", env)
	}
}

func TestVerify(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := doRequest(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	data := decodeEnvelope(t, rec).Data.(map[string]any)
	if data["username"] != testUser {
		t.Errorf("verify username = %v, want %q", data["username"], testUser)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/finance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := doRequest(t, s, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestCreateAndListRecords(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	created := createRecord(t, s, token, "Raj", "250.50")
	if created["id"] == "" {
		t.Error("created record has no id")
	}
	image := created["billImage"].(map[string]any)
	if !strings.Contains(image["url"].(string), "/uploads/") {
		t.Errorf("bill image URL = %v, want /uploads/ path", image["url"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/finance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := doRequest(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Count == nil || *env.Count != 1 {
		t.Errorf("list count = %v, want 1", env.Count)
	}
}

func TestCreateRecordRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	post := func(fields map[string]string, filename string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, fields, filename, "bytes")
		req := httptest.NewRequest(http.MethodPost, "/api/finance", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		return doRequest(t, s, req)
	}

	valid := map[string]string{
		fieldUserName:     "Raj",
		fieldMobileNumber: "9876543210",
		fieldAmount:       "100",
		fieldLocation:     "Chennai",
	}

	// Missing bill image.
	if rec := post(valid, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d, want 400", rec.Code)
	}

	// Unparseable amount.
	bad := map[string]string{}
	for k, v := range valid {
		bad[k] = v
	}
	bad[fieldAmount] = "abc"
	if rec := post(bad, "bill.jpg"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad amount status = %d, want 400", rec.Code)
	}

	// Disallowed file format.
	if rec := post(valid, "script.exe"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", rec.Code)
	}

	// Missing user name.
	delete(bad, fieldAmount)
	bad[fieldAmount] = "100"
	bad[fieldUserName] = "  "
	if rec := post(bad, "bill.jpg"); rec.Code != http.StatusBadRequest {
		t.Errorf("empty user status = %d, want 400", rec.Code)
	}
}

func TestGetUpdateDeleteRecord(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)
	created := createRecord(t, s, token, "Raj", "100")
	id := created["id"].(string)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/finance/"+id, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return doRequest(t, s, req)
	}

	if rec := get(); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Update without a new image.
	body, contentType := multipartBody(t, map[string]string{
		fieldUserName:     "Raj",
		fieldMobileNumber: "9876543210",
		fieldAmount:       "300",
		fieldLocation:     "Chennai",
	}, "", "")
	req := httptest.NewRequest(http.MethodPut, "/api/finance/"+id, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := doRequest(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeEnvelope(t, rec).Data.(map[string]any)
	if fmt.Sprint(updated["amount"]) != "300" {
		t.Errorf("updated amount = %v, want 300", updated["amount"])
	}
	if updated["billImage"].(map[string]any)["storageId"] != created["billImage"].(map[string]any)["storageId"] {
		t.Error("update without file must keep the old bill image")
	}

	// Delete, then everything 404s.
	req = httptest.NewRequest(http.MethodDelete, "/api/finance/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := doRequest(t, s, req); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := get(); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestBulkDelete(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	first := createRecord(t, s, token, "Raj", "100")["id"].(string)
	second := createRecord(t, s, token, "Priya", "200")["id"].(string)

	body, _ := json.Marshal(map[string][]string{"ids": {first, second}})
	req := httptest.NewRequest(http.MethodDelete, "/api/finance", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := doRequest(t, s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete status = %d, body %s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/finance", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	env := decodeEnvelope(t, doRequest(t, s, listReq))
	if env.Count == nil || *env.Count != 0 {
		t.Errorf("list count after bulk delete = %v, want 0", env.Count)
	}

	// Empty id list is rejected.
	body, _ = json.Marshal(map[string][]string{"ids": {}})
	req = httptest.NewRequest(http.MethodDelete, "/api/finance", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := doRequest(t, s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids status = %d, want 400", rec.Code)
	}
}

func TestLedger(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	createRecord(t, s, token, "Raj", "500")
	createRecord(t, s, token, "raj", "300")
	priyaID := createRecord(t, s, token, "Priya", "1500")["id"].(string)

	ledger := func(q string) ledgerPayload {
		t.Helper()
		target := "/api/ledger"
		if q != "" {
			target += "?q=" + url.QueryEscape(q)
		}
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := doRequest(t, s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("ledger status = %d, body %s", rec.Code, rec.Body.String())
		}
		raw, _ := json.Marshal(decodeEnvelope(t, rec).Data)
		var payload ledgerPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("decode ledger payload: %v", err)
		}
		return payload
	}

	full := ledger("")
	if len(full.Rows) != 2 {
		t.Fatalf("ledger rows = %d, want 2 (Raj/raj grouped)", len(full.Rows))
	}
	if full.GrandTotal.String() != "2300" {
		t.Errorf("grand total = %s, want 2300", full.GrandTotal.String())
	}

	filtered := ledger("priya")
	if len(filtered.Rows) != 1 || filtered.Rows[0].UserName != "Priya" {
		t.Errorf("filtered rows = %+v, want only Priya", filtered.Rows)
	}

	// Amount substring matches both 500 and 1500, not 300.
	byAmount := ledger("500")
	total := 0
	for _, row := range byAmount.Rows {
		total += row.EntryCount
	}
	if total != 2 {
		t.Errorf("amount filter matched %d records, want 2", total)
	}

	// A delete purges the cache; the next read sees fresh data.
	req := httptest.NewRequest(http.MethodDelete, "/api/finance/"+priyaID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := doRequest(t, s, req); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	after := ledger("")
	if len(after.Rows) != 1 {
		t.Errorf("ledger rows after delete = %d, want 1", len(after.Rows))
	}
	if after.GrandTotal.String() != "800" {
		t.Errorf("grand total after delete = %s, want 800", after.GrandTotal.String())
	}
}

func TestUploadsServing(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	created := createRecord(t, s, token, "Raj", "100")
	rawURL := created["billImage"].(map[string]any)["url"].(string)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse bill URL %q: %v", rawURL, err)
	}

	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, parsed.Path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("uploads status = %d for %s", rec.Code, parsed.Path)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Errorf("uploaded content = %q, want original bytes", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": testUser, "password": "wrong"})
	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = doRequest(t, s, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("11th login attempt status = %d, want 429", last.Code)
	}
}
