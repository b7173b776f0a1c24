package healthcheck

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNormalizeListen(t *testing.T) {
	cases := map[string]string{
		"":               "",
		" 8080 ":         ":8080",
		":9000":          ":9000",
		"127.0.0.1:9000": "127.0.0.1:9000",
	}
	for in, want := range cases {
		if got := NormalizeListen(in); got != want {
			t.Errorf("NormalizeListen(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthHandlerReportsStats(t *testing.T) {
	h := NewHandler("modmail", time.Now().Add(-time.Minute), func() any {
		return map[string]int{"pending": 3}
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status    string         `json:"status"`
		Component string         `json:"component"`
		Stats     map[string]int `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Component != "modmail" || body.Stats["pending"] != 3 {
		t.Fatalf("body = %+v", body)
	}
}

func TestHealthHandlerUnknownPath(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler("modmail", time.Now(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
