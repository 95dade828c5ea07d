package webapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONAndWriteError(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"hello": "world"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type: %q", ct)
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("cache control: %q", cc)
	}

	er := httptest.NewRecorder()
	WriteError(er, http.StatusNotFound, "not_found", "event not found")

	var out struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(er.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if er.Code != http.StatusNotFound || out.Error.Code != "not_found" || out.Error.Message != "event not found" {
		t.Fatalf("unexpected error response: status=%d body=%+v", er.Code, out)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"alice"}`},
		{name: "unknown field", body: `{"name":"alice","extra":1}`, wantErr: true},
		{name: "trailing data", body: `{"name":"alice"}{"name":"bob"}`, wantErr: true},
		{name: "not json", body: `name=alice`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			var dst payload
			err := DecodeJSON(rr, req, 1<<10, &dst)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got value %+v", dst)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dst.Name != "alice" {
				t.Fatalf("decoded value: %+v", dst)
			}
		})
	}
}

func TestDecodeJSONEnforcesSizeLimit(t *testing.T) {
	t.Parallel()

	big := `{"name":"` + strings.Repeat("x", 2048) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	rr := httptest.NewRecorder()

	var dst struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(rr, req, 64, &dst); err == nil {
		t.Fatalf("oversized body must be rejected")
	}
}
