package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"leadrouter_backend/internal/routing/service"
	"leadrouter_backend/platform/validator"
)

// newTestRouter builds a router whose service would panic if reached; the
// cases below must all be rejected by binding or validation first.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := New(service.New(nil, nil, nil, nil, nil, nil, nil, nil, nil), validator.New())
	r := gin.New()
	h.RegisterRoutes(r.Group("/routing"))
	h.RegisterAdminRoutes(r.Group("/admin/routing"))
	return r
}

func post(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAssign_RejectsMissingMandatoryFields(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing postal code", `{"externalContactId":"c-1","source":"web","leadScore":50}`},
		{"missing source", `{"externalContactId":"c-1","postalCode":"10001","leadScore":50}`},
		{"missing contact id", `{"postalCode":"10001","source":"web","leadScore":50}`},
		{"lead score out of range", `{"externalContactId":"c-1","postalCode":"10001","source":"web","leadScore":101}`},
		{"malformed json", `{"postalCode":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(t, r, "/routing/assignments", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestAssignBatch_RejectsEmptyBatch(t *testing.T) {
	r := newTestRouter(t)

	w := post(t, r, "/routing/assignments/batch", `{"leads":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAssignBatch_ValidatesNestedItems(t *testing.T) {
	r := newTestRouter(t)

	// One item is missing its postal code; dive validation must catch it.
	w := post(t, r, "/routing/assignments/batch",
		`{"leads":[{"externalContactId":"c-1","source":"web","leadScore":50}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestReassign_RejectsInvalidLeadID(t *testing.T) {
	r := newTestRouter(t)

	w := post(t, r, "/admin/routing/leads/not-a-uuid/reassign",
		`{"newLocationId":"5c8a6f9e-0000-0000-0000-000000000000"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPatch,
		"/routing/leads/5c8a6f9e-1111-4a2b-8c3d-000000000000/status",
		strings.NewReader(`{"status":"archived"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
