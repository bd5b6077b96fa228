package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Raj  ", "Raj"},
		{"Raj\x00Kumar", "RajKumar"},
		{"line1\nline2", "line1\nline2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseBulkDeleteRequest(t *testing.T) {
	parse := func(body string) ([]string, error) {
		r := httptest.NewRequest(http.MethodDelete, "/api/finance", strings.NewReader(body))
		return parseBulkDeleteRequest(r)
	}

	ids, err := parse(`{"ids": ["a", " b ", ""]}`)
	if err != nil {
		t.Fatalf("parseBulkDeleteRequest() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want [a b] with blanks dropped", ids)
	}

	if _, err := parse(`{"ids": []}`); err == nil {
		t.Error("empty ids should be rejected")
	}
	if _, err := parse(`not json`); err == nil {
		t.Error("malformed body should be rejected")
	}
}

func TestParseRecordFormRejectsNonMultipart(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/finance", strings.NewReader("userName=Raj"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, err := parseRecordForm(r); err == nil {
		t.Error("non-multipart body should be rejected")
	}
}
