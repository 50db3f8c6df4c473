package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asakaida/modelchain/internal/app"
	"github.com/asakaida/modelchain/internal/handlers"
	"github.com/asakaida/modelchain/internal/infrastructure/config"
	"github.com/asakaida/modelchain/internal/infrastructure/metrics"
	pb "github.com/asakaida/modelchain/proto/modelchain/v1"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const bufSize = 1024 * 1024

// E2ETestServer represents an E2E test server
type E2ETestServer struct {
	Core       *app.App
	Server     *grpc.Server
	DataClient pb.DataServiceClient
	Admin      http.Handler
	Conn       *grpc.ClientConn
	DB         *sql.DB
	Listener   *bufconn.Listener
}

// SetupE2ETest migrates a fresh SQLite database, seeds the blog fixture and
// serves the DataService over bufconn
func SetupE2ETest(t *testing.T) *E2ETestServer {
	t.Helper()

	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("failed to find project root: %v", err)
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "e2e.db"),
		},
		Cache: config.CacheConfig{
			Enabled:        true,
			MaxMemoryBytes: 1 << 20,
			Metrics:        true,
		},
		Resolver: config.ResolverConfig{
			MaxDepth:    32,
			Parallelism: 4,
		},
		Registry: config.RegistryConfig{
			DefinitionsPath: filepath.Join(projectRoot, "definitions", "entities.yaml"),
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core, err := app.New(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	// Embedded migrations
	if err := core.Database.RunMigrations(""); err != nil {
		core.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	seedDatabase(t, core.Database.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := core.Warm(ctx); err != nil {
		core.Close()
		t.Fatalf("failed to warm field lists: %v", err)
	}

	// Create in-memory gRPC server with bufconn
	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(core.Collector, core.Exporter)),
	)
	pb.RegisterDataServiceServer(server, handlers.NewDataHandler(core, core.Resolver, core.Renderer))

	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	bufDialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	conn, err := grpc.NewClient(
		"passthrough://bufconn",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		server.Stop()
		core.Close()
		t.Fatalf("failed to create client connection: %v", err)
	}

	return &E2ETestServer{
		Core:       core,
		Server:     server,
		DataClient: pb.NewDataServiceClient(conn),
		Admin:      handlers.NewAdminRouter(core, prometheus.NewRegistry(), core.Exporter.Update),
		Conn:       conn,
		DB:         core.Database.DB,
		Listener:   listener,
	}
}

// Teardown cleans up the E2E test environment
func (e *E2ETestServer) Teardown(t *testing.T) {
	t.Helper()

	if e.Conn != nil {
		e.Conn.Close()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
	if e.Listener != nil {
		e.Listener.Close()
	}
	if e.Core != nil {
		if err := e.Core.Close(); err != nil {
			t.Logf("warning: failed to close: %v", err)
		}
	}
}

// seedDatabase inserts two users, three posts, two comments and two tags
func seedDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	statements := []string{
		`INSERT INTO users (id, name, email) VALUES (1, 'alice', 'alice@example.com'), (2, 'bob', 'bob@example.com')`,
		`INSERT INTO posts (id, user_id, title) VALUES (1, 1, 'hello'), (2, 1, 'again'), (3, 2, 'lurking')`,
		`INSERT INTO comments (id, post_id, body) VALUES (1, 1, 'nice'), (2, 1, 'agreed')`,
		`INSERT INTO tags (id, label) VALUES (10, 'go'), (11, 'sql')`,
		`INSERT INTO post_tags (post_id, tag_id) VALUES (1, 10), (1, 11), (3, 11)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to seed database: %v", err)
		}
	}
}

// chainRequest builds a DataService request from entity/params pairs, root first
func chainRequest(t *testing.T, levels []map[string]interface{}, args ...interface{}) *structpb.Struct {
	t.Helper()

	chainList := make([]interface{}, len(levels))
	for i, l := range levels {
		chainList[i] = l
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"chain": chainList,
		"args":  args,
	})
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	return req
}

// level is shorthand for one chain entry
func level(entity string, params map[string]interface{}) map[string]interface{} {
	l := map[string]interface{}{"entity": entity}
	if params != nil {
		l["params"] = params
	}
	return l
}

// findProjectRoot finds the project root directory by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project root not found")
		}
		dir = parent
	}
}
