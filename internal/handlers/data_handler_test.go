package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/chain"
	"github.com/asakaida/modelchain/internal/services/resolver"
	"github.com/asakaida/modelchain/internal/services/sqlrender"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func blogEntities(t *testing.T) *mockEntitySource {
	t.Helper()
	user := testDescriptor("User", "users", "name")
	post := testDescriptor("Post", "posts", "user_id", "title")
	if err := user.AddRelation(entities.Has, "posts", &entities.RelationSpec{TargetEntity: "Post", ForeignKey: "user_id"}); err != nil {
		t.Fatalf("failed to add relation: %v", err)
	}
	return newMockEntitySource(user, post)
}

func newTestDataHandler(t *testing.T, res *mockResolver) *DataHandler {
	t.Helper()
	return NewDataHandler(blogEntities(t), res, sqlrender.New(sqlrender.Postgres))
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != want {
		t.Errorf("expected code %s, got %s (%s)", want, st.Code(), st.Message())
	}
}

func TestDataHandler_GetAll_Success(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res := &mockResolver{
		getAllFunc: func(ctx context.Context, node *chain.Node) (entities.ResultTree, error) {
			if node.Entity().Name != "User" {
				t.Errorf("expected User node, got %s", node.Entity().Name)
			}
			return entities.ResultTree{"User": {
				{"id": int64(1), "name": "alice", "created_at": created, "posts": []entities.Row{
					{"id": int64(3), "title": "hello", "body": []byte("raw")},
				}},
			}}, nil
		},
	}
	handler := newTestDataHandler(t, res)

	resp, err := handler.GetAll(context.Background(), chainRequest(chain.Levels{{Entity: "User"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	users := resp.Fields["User"].GetListValue().GetValues()
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	user := users[0].GetStructValue().AsMap()
	if user["name"] != "alice" || user["id"] != float64(1) {
		t.Errorf("unexpected user row: %v", user)
	}
	if user["created_at"] != "2024-05-01T12:00:00Z" {
		t.Errorf("expected RFC 3339 timestamp, got %v", user["created_at"])
	}

	posts, ok := user["posts"].([]interface{})
	if !ok || len(posts) != 1 {
		t.Fatalf("expected 1 nested post, got %v", user["posts"])
	}
	post := posts[0].(map[string]interface{})
	if post["title"] != "hello" || post["body"] != "raw" {
		t.Errorf("unexpected post row: %v", post)
	}
}

func TestDataHandler_ResolvesTerminalNode(t *testing.T) {
	var got *chain.Node
	res := &mockResolver{
		getAllFunc: func(ctx context.Context, node *chain.Node) (entities.ResultTree, error) {
			got = node
			return entities.ResultTree{node.Entity().Name: {}}, nil
		},
	}
	handler := newTestDataHandler(t, res)

	req := chainRequest(chain.Levels{
		{Entity: "User", Params: map[string]interface{}{"id": 1}},
		{Entity: "Post"},
	})
	if _, err := handler.GetAll(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Entity().Name != "Post" {
		t.Errorf("expected terminal Post node, got %s", got.Entity().Name)
	}
	id, ok := got.Parent().ID()
	if !ok || id != int64(1) {
		t.Errorf("expected parent id int64(1), got %v (%T)", id, id)
	}
}

func TestDataHandler_InvalidRequests(t *testing.T) {
	handler := newTestDataHandler(t, &mockResolver{})

	tests := []struct {
		name string
		req  *structpb.Struct
	}{
		{"nil request", nil},
		{"missing chain", &structpb.Struct{Fields: map[string]*structpb.Value{}}},
		{"chain is not a list", &structpb.Struct{Fields: map[string]*structpb.Value{"chain": structpb.NewStringValue("User")}}},
		{"empty chain", chainRequest(chain.Levels{})},
		{"unknown entity", chainRequest(chain.Levels{{Entity: "Ghost"}})},
		{"level without entity", mustStruct(t, map[string]interface{}{"chain": []interface{}{map[string]interface{}{"params": map[string]interface{}{}}}})},
		{"args is not a list", mustStruct(t, map[string]interface{}{"chain": []interface{}{map[string]interface{}{"entity": "User"}}, "args": "1"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.GetAll(context.Background(), tt.req)
			assertCode(t, err, codes.InvalidArgument)
		})
	}
}

func TestDataHandler_GetAll_RejectsArgs(t *testing.T) {
	handler := newTestDataHandler(t, &mockResolver{})

	_, err := handler.GetAll(context.Background(), chainRequest(chain.Levels{{Entity: "User"}}, 1))
	assertCode(t, err, codes.InvalidArgument)
}

func TestDataHandler_GetOne(t *testing.T) {
	res := &mockResolver{
		getOneFunc: func(ctx context.Context, node *chain.Node, args ...interface{}) (entities.ResultTree, error) {
			if len(args) != 1 {
				return nil, &entities.BadArgumentCountError{Op: "User.GetOne", Expected: "exactly 1", Got: len(args)}
			}
			if args[0] != int64(7) {
				return entities.ResultTree{"User": {}}, nil
			}
			return entities.ResultTree{"User": {{"id": int64(7), "name": "grace"}}}, nil
		},
	}
	handler := newTestDataHandler(t, res)
	levels := chain.Levels{{Entity: "User"}}

	t.Run("found", func(t *testing.T) {
		resp, err := handler.GetOne(context.Background(), chainRequest(levels, 7))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rows := resp.Fields["User"].GetListValue().GetValues()
		if len(rows) != 1 || rows[0].GetStructValue().Fields["name"].GetStringValue() != "grace" {
			t.Errorf("unexpected response: %v", resp)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := handler.GetOne(context.Background(), chainRequest(levels, 8))
		assertCode(t, err, codes.NotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := handler.GetOne(context.Background(), chainRequest(levels))
		assertCode(t, err, codes.InvalidArgument)
	})

	t.Run("too many ids", func(t *testing.T) {
		_, err := handler.GetOne(context.Background(), chainRequest(levels, 1, 2))
		assertCode(t, err, codes.InvalidArgument)
	})
}

func TestDataHandler_Count(t *testing.T) {
	res := &mockResolver{
		countFunc: func(ctx context.Context, node *chain.Node, args ...interface{}) (int64, error) {
			return int64(40 + len(args)), nil
		},
	}
	handler := newTestDataHandler(t, res)

	resp, err := handler.Count(context.Background(), chainRequest(chain.Levels{{Entity: "User"}}, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Fields["count"].GetNumberValue(); got != 41 {
		t.Errorf("expected count 41, got %v", got)
	}
	if got := resp.Fields["entity"].GetStringValue(); got != "User" {
		t.Errorf("expected entity User, got %s", got)
	}
}

func TestDataHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"cycle", &entities.RelationshipCycleError{Path: []string{"User.has.posts"}, Edge: "User.has.posts"}, codes.InvalidArgument},
		{"depth", fmt.Errorf("%w: 32 hops below User.has.posts", resolver.ErrDepthExceeded), codes.InvalidArgument},
		{"unknown entity", fmt.Errorf("failed to load: %w", &entities.UnknownEntityTypeError{Name: "Post"}), codes.InvalidArgument},
		{"query execution", &entities.QueryExecutionError{Query: "SELECT 1", Err: errors.New("connection reset")}, codes.Internal},
		{"other", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &mockResolver{
				countFunc: func(ctx context.Context, node *chain.Node, args ...interface{}) (int64, error) {
					return 0, tt.err
				},
			}
			handler := newTestDataHandler(t, res)

			_, err := handler.Count(context.Background(), chainRequest(chain.Levels{{Entity: "User"}}))
			assertCode(t, err, tt.want)
		})
	}
}

func TestDataHandler_Plan_UnrelatedLevels(t *testing.T) {
	source := newMockEntitySource(
		testDescriptor("User", "users", "name"),
		testDescriptor("Tag", "tags", "label"),
	)
	handler := NewDataHandler(source, &mockResolver{}, sqlrender.New(sqlrender.Postgres))

	_, err := handler.Plan(context.Background(), chainRequest(chain.Levels{{Entity: "User"}, {Entity: "Tag"}}))
	assertCode(t, err, codes.InvalidArgument)
	if !strings.Contains(err.Error(), "not joined") {
		t.Errorf("expected the unjoined table to be reported, got: %v", err)
	}
}

func TestDataHandler_Plan(t *testing.T) {
	handler := newTestDataHandler(t, &mockResolver{})

	req := chainRequest(chain.Levels{
		{Entity: "User", Params: map[string]interface{}{"id": 1}},
		{Entity: "Post"},
	})
	resp, err := handler.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plan := resp.AsMap()
	if plan["from"] != "posts" {
		t.Errorf("expected from posts, got %v", plan["from"])
	}

	sql, _ := plan["sql"].(string)
	if !strings.HasPrefix(sql, `SELECT "users"."id" AS "users.id"`) {
		t.Errorf("unexpected sql: %s", sql)
	}
	if !strings.Contains(sql, `FROM "posts" INNER JOIN "users" ON "posts"."user_id" = "users"."id"`) {
		t.Errorf("expected users joined onto posts, got: %s", sql)
	}
	if !strings.HasSuffix(sql, `WHERE "users"."id" = $1`) {
		t.Errorf("expected id predicate, got: %s", sql)
	}

	where, _ := plan["where"].([]interface{})
	if len(where) != 1 || where[0] != "users.id = 1" {
		t.Errorf("unexpected where: %v", plan["where"])
	}
	args, _ := plan["args"].([]interface{})
	if len(args) != 1 || args[0] != float64(1) {
		t.Errorf("unexpected args: %v", plan["args"])
	}
}

func TestDataHandler_Plan_ParamsOverride(t *testing.T) {
	handler := newTestDataHandler(t, &mockResolver{})

	req := chainRequest(chain.Levels{
		{Entity: "User", Params: map[string]interface{}{"id": 1}},
		{Entity: "Post", Params: map[string]interface{}{"id": 3}},
	})
	params, err := structpb.NewStruct(map[string]interface{}{"id": 7})
	if err != nil {
		t.Fatalf("failed to build params: %v", err)
	}
	req.Fields["params"] = structpb.NewStructValue(params)

	resp, err := handler.Plan(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	where, _ := resp.AsMap()["where"].([]interface{})
	if len(where) != 2 || where[0] != "users.id = 1" || where[1] != "posts.id = 7" {
		t.Errorf("expected the terminal id overridden, got %v", where)
	}
}

func TestDataHandler_InvalidParams(t *testing.T) {
	handler := newTestDataHandler(t, &mockResolver{})

	req := chainRequest(chain.Levels{{Entity: "User"}})
	req.Fields["params"] = structpb.NewStringValue("id=7")

	_, err := handler.Plan(context.Background(), req)
	assertCode(t, err, codes.InvalidArgument)
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("JST", 9*60*60))

	got := normalize(entities.Row{"at": ts, "n": 3, "raw": []byte("x"), "nested": []entities.Row{{"ok": true}}})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a plain map, got %T", got)
	}
	if m["at"] != "2024-01-01T18:04:05Z" {
		t.Errorf("expected UTC RFC 3339 time, got %v", m["at"])
	}
	if m["n"] != int64(3) {
		t.Errorf("expected int64, got %T", m["n"])
	}
	if m["raw"] != "x" {
		t.Errorf("expected string bytes, got %v", m["raw"])
	}
	if _, err := structpb.NewValue(got); err != nil {
		t.Errorf("normalized value must be encodable: %v", err)
	}
}

func TestIntegral(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{float64(3), int64(3)},
		{float64(-2), int64(-2)},
		{1.5, 1.5},
		{"7", "7"},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := integral(tt.in); got != tt.want {
			t.Errorf("integral(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("failed to build struct: %v", err)
	}
	return s
}
