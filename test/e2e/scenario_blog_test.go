package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TestE2E_BlogScenario walks the sample blog schema through every DataService operation
func TestE2E_BlogScenario(t *testing.T) {
	e := SetupE2ETest(t)
	defer e.Teardown(t)

	ctx := context.Background()

	t.Run("GetAll nests every relationship", func(t *testing.T) {
		resp, err := e.DataClient.GetAll(ctx, chainRequest(t, []map[string]interface{}{level("User", nil)}))
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}

		users := resp.AsMap()["User"].([]interface{})
		if len(users) != 2 {
			t.Fatalf("expected 2 users, got %d", len(users))
		}

		alice := users[0].(map[string]interface{})
		if alice["name"] != "alice" {
			t.Fatalf("expected alice first, got %v", alice["name"])
		}
		posts := alice["posts"].([]interface{})
		if len(posts) != 2 {
			t.Fatalf("expected alice to have 2 posts, got %d", len(posts))
		}

		hello := posts[0].(map[string]interface{})
		if hello["title"] != "hello" {
			t.Errorf("expected first post 'hello', got %v", hello["title"])
		}
		if comments := hello["comments"].([]interface{}); len(comments) != 2 {
			t.Errorf("expected 2 comments, got %d", len(comments))
		}
		if tags := hello["tags"].([]interface{}); len(tags) != 2 {
			t.Errorf("expected 2 tags, got %d", len(tags))
		}

		again := posts[1].(map[string]interface{})
		if comments := again["comments"].([]interface{}); len(comments) != 0 {
			t.Errorf("expected no comments on 'again', got %d", len(comments))
		}
	})

	t.Run("GetOne under a parent", func(t *testing.T) {
		levels := []map[string]interface{}{
			level("User", map[string]interface{}{"id": 1}),
			level("Post", nil),
		}

		resp, err := e.DataClient.GetOne(ctx, chainRequest(t, levels, 1))
		if err != nil {
			t.Fatalf("GetOne failed: %v", err)
		}
		posts := resp.AsMap()["Post"].([]interface{})
		if len(posts) != 1 {
			t.Fatalf("expected 1 post, got %d", len(posts))
		}
		post := posts[0].(map[string]interface{})
		if post["title"] != "hello" || post["user_id"] != float64(1) {
			t.Errorf("unexpected post: %v", post)
		}

		_, err = e.DataClient.GetOne(ctx, chainRequest(t, levels, 99))
		if status.Code(err) != codes.NotFound {
			t.Errorf("expected NotFound, got %v", err)
		}
	})

	t.Run("Count", func(t *testing.T) {
		resp, err := e.DataClient.Count(ctx, chainRequest(t, []map[string]interface{}{level("Comment", nil)}))
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n := resp.Fields["count"].GetNumberValue(); n != 2 {
			t.Errorf("expected 2 comments, got %v", n)
		}

		resp, err = e.DataClient.Count(ctx, chainRequest(t, []map[string]interface{}{level("Tag", nil)}, 10))
		if err != nil {
			t.Fatalf("Count by id failed: %v", err)
		}
		if n := resp.Fields["count"].GetNumberValue(); n != 1 {
			t.Errorf("expected 1 tag, got %v", n)
		}
	})

	t.Run("Plan accumulates joins", func(t *testing.T) {
		resp, err := e.DataClient.Plan(ctx, chainRequest(t, []map[string]interface{}{
			level("User", map[string]interface{}{"id": 1}),
			level("Post", nil),
			level("Tag", nil),
		}))
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}

		plan := resp.AsMap()
		if plan["from"] != "tags" {
			t.Errorf("expected from tags, got %v", plan["from"])
		}
		if joins := plan["joins"].([]interface{}); len(joins) != 3 {
			t.Errorf("expected 3 joins, got %d", len(joins))
		}
		sql, _ := plan["sql"].(string)
		if !strings.Contains(sql, `"post_tags"`) || !strings.Contains(sql, `"users"."id" = ?`) {
			t.Errorf("unexpected sql: %s", sql)
		}
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := e.DataClient.GetAll(ctx, chainRequest(t, []map[string]interface{}{level("Ghost", nil)}))
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("expected InvalidArgument, got %v", err)
		}
	})

	t.Run("field lists are introspected once", func(t *testing.T) {
		cache := e.Core.Collector.GetCacheMetrics()
		if cache.Misses != 4 || cache.KeysCurrent != 4 {
			t.Errorf("expected one introspection and one cached list per entity, got %+v", cache)
		}
	})
}

func TestE2E_AdminCatalog(t *testing.T) {
	e := SetupE2ETest(t)
	defer e.Teardown(t)

	w := httptest.NewRecorder()
	e.Admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/entities", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var entities []struct {
		Name  string `json:"name"`
		Table string `json:"table"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &entities); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	tables := map[string]string{}
	for _, ent := range entities {
		tables[ent.Name] = ent.Table
	}
	want := map[string]string{"User": "users", "Post": "posts", "Comment": "comments", "Tag": "tags"}
	for name, table := range want {
		if tables[name] != table {
			t.Errorf("expected %s -> %s, got %q", name, table, tables[name])
		}
	}

	w = httptest.NewRecorder()
	e.Admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/entities/Post", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"user_id"`) {
		t.Errorf("expected introspected post fields, got %s", w.Body.String())
	}
}
