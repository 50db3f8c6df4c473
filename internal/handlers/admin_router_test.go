package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sortedCatalog struct {
	*mockEntitySource
	names []string
}

func (c *sortedCatalog) Names() []string { return c.names }

func newTestAdminRouter(t *testing.T, onScrape func()) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "modelchain_test_total", Help: "test counter"})
	reg.MustRegister(counter)
	counter.Inc()

	catalog := &sortedCatalog{mockEntitySource: blogEntities(t), names: []string{"Post", "User"}}
	return NewAdminRouter(catalog, reg, onScrape)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAdminRouter_Healthz(t *testing.T) {
	w := get(t, newTestAdminRouter(t, nil), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestAdminRouter_Metrics(t *testing.T) {
	scraped := 0
	w := get(t, newTestAdminRouter(t, func() { scraped++ }), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "modelchain_test_total 1") {
		t.Errorf("expected test counter in exposition, got: %s", w.Body.String())
	}
	if scraped != 1 {
		t.Errorf("expected onScrape to run once, ran %d times", scraped)
	}
}

func TestAdminRouter_ListEntities(t *testing.T) {
	w := get(t, newTestAdminRouter(t, nil), "/v1/entities")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out []entitySummary
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(out) != 2 || out[0].Name != "Post" || out[1].Name != "User" {
		t.Fatalf("unexpected entities: %+v", out)
	}
	if out[1].Relationships["has"]["posts"] != "Post" {
		t.Errorf("expected User has posts -> Post, got %v", out[1].Relationships)
	}
	if out[0].Relationships != nil {
		t.Errorf("expected Post without relationships, got %v", out[0].Relationships)
	}
}

func TestAdminRouter_Entity(t *testing.T) {
	h := newTestAdminRouter(t, nil)

	t.Run("found", func(t *testing.T) {
		w := get(t, h, "/v1/entities/User")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var out entityDetail
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if out.Table != "users" || out.PrimaryKey != "id" || len(out.Fields) != 2 {
			t.Errorf("unexpected descriptor: %+v", out)
		}
		if got := out.Aliases["Post"]; len(got) != 1 || got[0] != "posts" {
			t.Errorf("unexpected aliases: %v", out.Aliases)
		}
	})

	t.Run("alias filter", func(t *testing.T) {
		w := get(t, h, "/v1/entities/User?alias=missing")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var out entityDetail
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(out.Aliases) != 0 {
			t.Errorf("expected no aliases, got %v", out.Aliases)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		w := get(t, h, "/v1/entities/Ghost")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}
