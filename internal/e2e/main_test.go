//go:build e2e

// Package e2e runs the crew pipeline against real Postgres, Redis and
// Qdrant containers. LLM and stats APIs are served by httptest fakes.
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// Set by TestMain, shared by every test.
var (
	testLogger   *zap.Logger
	testDSN      string
	testRedisURL string
	testQdrant   struct {
		Host string
		Port int
	}
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	dsn, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres: %v\n", err)
		os.Exit(1)
	}
	testDSN = dsn

	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		pgCleanup()
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = redisURL

	qdrantCleanup, err := startQdrant(ctx)
	if err != nil {
		pgCleanup()
		redisCleanup()
		fmt.Fprintf(os.Stderr, "qdrant: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	qdrantCleanup()
	redisCleanup()
	pgCleanup()
	os.Exit(code)
}

func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("statcrew_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	return dsn, func() { container.Terminate(ctx) }, nil
}

func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	return "redis://" + endpoint, func() { container.Terminate(ctx) }, nil
}

// startQdrant runs the Qdrant image directly; there is no module for it.
func startQdrant(ctx context.Context) (func(), error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "qdrant/qdrant:v1.12.4",
			ExposedPorts: []string{"6334/tcp"},
			WaitingFor:   wait.ForListeningPort("6334/tcp"),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start qdrant: %w", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("qdrant host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6334/tcp")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("qdrant port: %w", err)
	}
	testQdrant.Host = host
	testQdrant.Port = port.Int()
	return func() { container.Terminate(ctx) }, nil
}
