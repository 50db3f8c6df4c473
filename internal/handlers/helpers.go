package handlers

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/chain"
	"github.com/asakaida/modelchain/internal/services/resolver"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// === Shared Helper Functions for all handlers ===

// dataRequest is the decoded body shared by every DataService call
type dataRequest struct {
	levels chain.Levels
	args   []interface{}
	params map[string]interface{} // overrides for the terminal level
}

// parseRequest reads {"chain": [...], "args": [...], "params": {...}} from a request struct
func parseRequest(req *structpb.Struct) (*dataRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	body := req.AsMap()

	rawChain, ok := body["chain"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("chain must be a list of {entity, params} objects")
	}
	levels, err := chain.LevelsFromValues(rawChain)
	if err != nil {
		return nil, err
	}
	for i := range levels {
		for k, v := range levels[i].Params {
			levels[i].Params[k] = integral(v)
		}
	}
	out := &dataRequest{levels: levels}

	switch raw := body["args"].(type) {
	case nil:
	case []interface{}:
		for _, v := range raw {
			out.args = append(out.args, integral(v))
		}
	default:
		return nil, fmt.Errorf("args must be a list, got %T", raw)
	}

	switch raw := body["params"].(type) {
	case nil:
	case map[string]interface{}:
		out.params = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			out.params[k] = integral(v)
		}
	default:
		return nil, fmt.Errorf("params must be an object, got %T", raw)
	}

	return out, nil
}

// integral turns whole JSON numbers back into int64 so ids bind as integers
func integral(v interface{}) interface{} {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return v
	}
	return int64(f)
}

// toStatus maps core errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case entities.IsUnknownEntityType(err),
		entities.IsBadArgumentCount(err),
		entities.IsRelationshipCycle(err),
		errors.Is(err, resolver.ErrDepthExceeded),
		errors.Is(err, entities.ErrEmptyChain):
		return status.Error(codes.InvalidArgument, err.Error())
	case entities.IsQueryExecution(err):
		return status.Errorf(codes.Internal, "failed to execute query: %v", err)
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// treeToStruct converts a result tree into a protobuf Struct
func treeToStruct(tree entities.ResultTree) (*structpb.Struct, error) {
	out := make(map[string]interface{}, len(tree))
	for name, rows := range tree {
		out[name] = normalize(rows)
	}
	s, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return s, nil
}

// normalize rewrites values structpb cannot hold: named row types become
// plain maps and slices, times become RFC 3339 strings
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case entities.Row:
		m := make(map[string]interface{}, len(val))
		for k, x := range val {
			m[k] = normalize(x)
		}
		return m
	case []entities.Row:
		list := make([]interface{}, len(val))
		for i, row := range val {
			list[i] = normalize(row)
		}
		return list
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, x := range val {
			m[k] = normalize(x)
		}
		return m
	case []interface{}:
		list := make([]interface{}, len(val))
		for i, x := range val {
			list[i] = normalize(x)
		}
		return list
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	case int:
		return int64(val)
	default:
		return val
	}
}

// componentsToMap renders query components in their logical form
func componentsToMap(q *entities.QueryComponents) map[string]interface{} {
	fields := make([]interface{}, 0, len(q.Fields))
	for _, f := range q.Fields {
		fields = append(fields, fmt.Sprintf("%s.%s AS %s", f.Table, f.Field, f.Alias))
	}

	joins := make([]interface{}, 0, len(q.Joins))
	for _, j := range q.Joins {
		on := make([]interface{}, 0, len(j.On))
		for _, p := range j.On {
			on = append(on, p.String())
		}
		joins = append(joins, map[string]interface{}{
			"kind":  string(j.Kind),
			"table": j.Table,
			"on":    on,
		})
	}

	where := make([]interface{}, 0, len(q.Where))
	for _, w := range q.WhereStrings() {
		where = append(where, w)
	}

	return map[string]interface{}{
		"from":   q.From,
		"fields": fields,
		"joins":  joins,
		"where":  where,
	}
}
