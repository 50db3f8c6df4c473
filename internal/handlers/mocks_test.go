package handlers

import (
	"context"

	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/services/chain"
	"google.golang.org/protobuf/types/known/structpb"
)

// Mock EntitySource - implements chain.EntitySource
type mockEntitySource struct {
	entities map[string]*entities.EntityDescriptor
}

func newMockEntitySource(descs ...*entities.EntityDescriptor) *mockEntitySource {
	m := &mockEntitySource{entities: make(map[string]*entities.EntityDescriptor)}
	for _, d := range descs {
		m.entities[d.Name] = d
	}
	return m
}

func (m *mockEntitySource) Lookup(name string) (*entities.EntityDescriptor, error) {
	desc, ok := m.entities[name]
	if !ok {
		return nil, &entities.UnknownEntityTypeError{Name: name}
	}
	return desc, nil
}

func (m *mockEntitySource) Entity(ctx context.Context, name string) (*entities.EntityDescriptor, error) {
	return m.Lookup(name)
}

func (m *mockEntitySource) Names() []string {
	names := make([]string, 0, len(m.entities))
	for name := range m.entities {
		names = append(names, name)
	}
	return names
}

// Mock ChainResolver
type mockResolver struct {
	getAllFunc func(ctx context.Context, node *chain.Node) (entities.ResultTree, error)
	getOneFunc func(ctx context.Context, node *chain.Node, args ...interface{}) (entities.ResultTree, error)
	countFunc  func(ctx context.Context, node *chain.Node, args ...interface{}) (int64, error)
}

func (m *mockResolver) GetAll(ctx context.Context, node *chain.Node) (entities.ResultTree, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx, node)
	}
	return entities.ResultTree{node.Entity().Name: {}}, nil
}

func (m *mockResolver) GetOne(ctx context.Context, node *chain.Node, args ...interface{}) (entities.ResultTree, error) {
	if m.getOneFunc != nil {
		return m.getOneFunc(ctx, node, args...)
	}
	return entities.ResultTree{node.Entity().Name: {}}, nil
}

func (m *mockResolver) Count(ctx context.Context, node *chain.Node, args ...interface{}) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, node, args...)
	}
	return 0, nil
}

// testDescriptor returns a loaded descriptor with an id primary key and the given columns
func testDescriptor(name, table string, fields ...string) *entities.EntityDescriptor {
	desc := entities.NewEntityDescriptor(name, table)
	desc.PrimaryKey = "id"
	desc.Fields = []*entities.FieldMeta{{Name: "id", Type: "INTEGER", KeyRole: entities.KeyRolePrimary}}
	for _, f := range fields {
		desc.Fields = append(desc.Fields, &entities.FieldMeta{Name: f, Type: "TEXT"})
	}
	return desc
}

// chainRequest builds {"chain": [{entity, params}...], "args": args}
func chainRequest(levels chain.Levels, args ...interface{}) *structpb.Struct {
	rawChain := make([]interface{}, 0, len(levels))
	for _, l := range levels {
		level := map[string]interface{}{"entity": l.Entity}
		if l.Params != nil {
			level["params"] = l.Params
		}
		rawChain = append(rawChain, level)
	}

	body := map[string]interface{}{"chain": rawChain}
	if len(args) > 0 {
		body["args"] = args
	}

	req, err := structpb.NewStruct(body)
	if err != nil {
		panic(err)
	}
	return req
}
