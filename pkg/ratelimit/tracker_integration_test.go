//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		rdb.Close()
		redisContainer.Terminate(ctx)
	}

	return rdb, cleanup
}

func TestTracker_Integration_SharedBlock(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()

	first := NewTracker(rdb, logger)
	second := NewTracker(rdb, logger)

	// Empty Redis: unblocked, unknown quota.
	state, err := second.GetState(ctx, "desk")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != RemainingUnknown {
		t.Errorf("Remaining = %d, want %d", state.Remaining, RemainingUnknown)
	}

	headers := http.Header{}
	headers.Set("Retry-After", "2")
	if err := first.UpdateFromResponse(ctx, "desk", http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("UpdateFromResponse() error = %v", err)
	}

	waitFor, err := second.ShouldAllowRequest(ctx, "desk")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if waitFor <= 0 {
		t.Errorf("wait = %v, want > 0 while blocked", waitFor)
	}

	// The block key expires with the block itself.
	time.Sleep(2500 * time.Millisecond)

	waitFor, err = second.ShouldAllowRequest(ctx, "desk")
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if waitFor != 0 {
		t.Errorf("wait = %v, want 0 after block expired", waitFor)
	}
}

func TestTracker_Integration_QuotaPerProduct(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(rdb, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	ctx := context.Background()

	for product, remain := range map[string]string{"crm": "4000", "books": "90"} {
		headers := http.Header{}
		headers.Set(HeaderRemaining, remain)
		if err := tracker.UpdateFromResponse(ctx, product, http.StatusOK, headers); err != nil {
			t.Fatalf("UpdateFromResponse(%s) error = %v", product, err)
		}
	}

	crm, _ := tracker.GetState(ctx, "crm")
	books, _ := tracker.GetState(ctx, "books")
	if crm.Remaining != 4000 || books.Remaining != 90 {
		t.Errorf("Remaining crm = %d, books = %d, want 4000 and 90", crm.Remaining, books.Remaining)
	}
}
