package surreal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/madara-alliance/orchestrator-go/internal/common"
)

var (
	containerOnce  sync.Once
	sharedAddress  string
	containerError error
)

// startSurrealDB starts a single shared SurrealDB container for the test
// binary's lifetime (sync.Once), grounded on the teacher's
// tests/common.StartSurrealDB helper.
func startSurrealDB(t *testing.T) string {
	t.Helper()

	containerOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			containerError = fmt.Errorf("start SurrealDB container: %w", err)
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			containerError = fmt.Errorf("get SurrealDB host: %w", err)
			return
		}
		mappedPort, err := container.MappedPort(ctx, "8000/tcp")
		if err != nil {
			container.Terminate(ctx)
			containerError = fmt.Errorf("get SurrealDB port: %w", err)
			return
		}
		sharedAddress = fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port())
	})

	if containerError != nil {
		t.Fatalf("SurrealDB container failed: %v", containerError)
	}
	return sharedAddress
}

// testStore connects a fresh Store to a uniquely-named database inside the
// shared container, for test isolation.
func testStore(t *testing.T) *Store {
	t.Helper()
	address := startSurrealDB(t)

	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)

	store, err := Connect(context.Background(), common.DatabaseConfig{
		Address:   address,
		Username:  "root",
		Password:  "root",
		Namespace: "orchestrator_test",
		Database:  dbName,
	}, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("connect store: %v", err)
	}
	return store
}
