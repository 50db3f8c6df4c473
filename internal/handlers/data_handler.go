package handlers

import (
	"context"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/chain"
	"github.com/asakaida/modelchain/internal/services/querybuilder"
	"github.com/asakaida/modelchain/internal/services/sqlrender"
	pb "github.com/asakaida/modelchain/proto/modelchain/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChainResolver resolves chain nodes into result trees
type ChainResolver interface {
	GetAll(ctx context.Context, node *chain.Node) (entities.ResultTree, error)
	GetOne(ctx context.Context, node *chain.Node, args ...interface{}) (entities.ResultTree, error)
	Count(ctx context.Context, node *chain.Node, args ...interface{}) (int64, error)
}

// DataHandler handles DataService gRPC requests
type DataHandler struct {
	pb.UnimplementedDataServiceServer
	source   chain.EntitySource
	resolver ChainResolver
	renderer *sqlrender.Renderer
}

// NewDataHandler creates a new DataHandler
func NewDataHandler(
	source chain.EntitySource,
	resolver ChainResolver,
	renderer *sqlrender.Renderer,
) *DataHandler {
	return &DataHandler{
		source:   source,
		resolver: resolver,
		renderer: renderer,
	}
}

// GetAll handles the GetAll RPC
func (h *DataHandler) GetAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	node, args, err := h.buildChain(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		return nil, status.Errorf(codes.InvalidArgument, "GetAll takes no args, got %d", len(args))
	}

	tree, err := h.resolver.GetAll(ctx, node)
	if err != nil {
		return nil, toStatus(err)
	}
	return treeToStruct(tree)
}

// GetOne handles the GetOne RPC. A missing row is reported as NotFound.
func (h *DataHandler) GetOne(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	node, args, err := h.buildChain(ctx, req)
	if err != nil {
		return nil, err
	}

	tree, err := h.resolver.GetOne(ctx, node, args...)
	if err != nil {
		return nil, toStatus(err)
	}

	name := node.Entity().Name
	if len(tree.Rows(name)) == 0 {
		return nil, status.Errorf(codes.NotFound, "%s %v not found", name, args[0])
	}
	return treeToStruct(tree)
}

// Count handles the Count RPC
func (h *DataHandler) Count(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	node, args, err := h.buildChain(ctx, req)
	if err != nil {
		return nil, err
	}

	n, err := h.resolver.Count(ctx, node, args...)
	if err != nil {
		return nil, toStatus(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entity": structpb.NewStringValue(node.Entity().Name),
		"count":  structpb.NewNumberValue(float64(n)),
	}}, nil
}

// Plan handles the Plan RPC: the components accumulated over the whole chain
// and the SQL they render to. Nothing is executed.
func (h *DataHandler) Plan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	node, _, err := h.buildChain(ctx, req)
	if err != nil {
		return nil, err
	}

	q := querybuilder.Plan(node)
	sql, args, err := h.renderer.RenderComponents(q)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to render plan: %v", err)
	}

	out := componentsToMap(q)
	out["sql"] = sql
	out["args"] = normalize(args)

	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode plan: %v", err)
	}
	return resp, nil
}

// buildChain decodes the request and builds its chain. The terminal node,
// which the operation applies to, is returned with the call args. Request
// level params override the terminal node's own params.
func (h *DataHandler) buildChain(ctx context.Context, req *structpb.Struct) (*chain.Node, []interface{}, error) {
	r, err := parseRequest(req)
	if err != nil {
		return nil, nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	root, err := chain.Build(ctx, h.source, r.levels)
	if err != nil {
		return nil, nil, toStatus(err)
	}
	if len(r.params) == 0 {
		return root.Terminal(), r.args, nil
	}

	levels := root.ParamsForChain()
	levels[len(levels)-1].Params = root.Terminal().WithParams(r.params)
	root, err = chain.Build(ctx, h.source, levels)
	if err != nil {
		return nil, nil, toStatus(err)
	}
	return root.Terminal(), r.args, nil
}
