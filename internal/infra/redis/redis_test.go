//go:build !integration

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-response-queue/internal/domain/model"
)

// mockRedis implements RedisClient in memory. Only the calls the tested
// components make are backed by real behavior.
type mockRedis struct {
	counters map[string]int64
	expired  map[string]time.Duration

	published []publishCall

	incrErr    error
	expireErr  error
	publishErr error
}

type publishCall struct {
	channel string
	payload interface{}
}

func newMockRedis() *mockRedis {
	return &mockRedis{counters: map[string]int64{}, expired: map[string]time.Duration{}}
}

func (m *mockRedis) Ping(ctx context.Context) error { return nil }
func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (m *mockRedis) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (m *mockRedis) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *mockRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if m.expireErr != nil {
		return m.expireErr
	}
	m.expired[key] = expiration
	return nil
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) error { return nil }

func (m *mockRedis) Publish(ctx context.Context, channel string, payload interface{}) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishCall{channel: channel, payload: payload})
	return nil
}

func (m *mockRedis) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit then blocks", func(t *testing.T) {
		client := newMockRedis()
		limiter := NewRateLimiter(client)
		key := ConversationKey("t1", "c1")

		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, key, 3, time.Minute)
			if err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
			if !ok {
				t.Fatalf("call %d should be allowed", i)
			}
		}
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("fourth call within the window must be blocked")
		}
	})

	t.Run("sets the window expiry on the first hit only", func(t *testing.T) {
		client := newMockRedis()
		limiter := NewRateLimiter(client)
		key := ConversationKey("t1", "c1")

		_, _ = limiter.Allow(ctx, key, 3, time.Minute)
		if client.expired[key] != time.Minute {
			t.Errorf("expected a 1m expiry, got %v", client.expired[key])
		}
		client.expired = map[string]time.Duration{}
		_, _ = limiter.Allow(ctx, key, 3, time.Minute)
		if len(client.expired) != 0 {
			t.Error("expiry must only be set when the counter is created")
		}
	})

	t.Run("surfaces redis failures", func(t *testing.T) {
		client := newMockRedis()
		client.incrErr = errors.New("connection refused")
		limiter := NewRateLimiter(client)

		if _, err := limiter.Allow(ctx, "k", 3, time.Minute); err == nil {
			t.Error("expected the incr error to surface")
		}
	})

	t.Run("keys are scoped per tenant and conversation", func(t *testing.T) {
		a := ConversationKey("t1", "c1")
		b := ConversationKey("t1", "c2")
		c := ConversationKey("t2", "c1")
		if a == b || a == c || b == c {
			t.Errorf("keys must differ: %s, %s, %s", a, b, c)
		}
	})
}

func TestUpdatePublisher_Publish(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	update, ok := model.NewJobUpdate("job-1", model.ContentDelta{Text: "Hel"})
	if !ok {
		t.Fatal("update unexpectedly dropped")
	}

	t.Run("publishes to the job's channel", func(t *testing.T) {
		client := newMockRedis()
		pub := NewUpdatePublisher(client, &log)

		pub.Publish(ctx, update)

		if len(client.published) != 1 {
			t.Fatalf("expected 1 publish, got %d", len(client.published))
		}
		call := client.published[0]
		if call.channel != ChannelFor("job-1") {
			t.Errorf("unexpected channel: %s", call.channel)
		}
		var body struct {
			Kind      string          `json:"kind"`
			Data      json.RawMessage `json:"data"`
			Timestamp int64           `json:"timestamp"`
		}
		if err := json.Unmarshal(call.payload.([]byte), &body); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		if body.Kind != string(model.UpdateContentDelta) || body.Timestamp == 0 {
			t.Errorf("unexpected payload: %+v", body)
		}
	})

	t.Run("a publish failure is swallowed", func(t *testing.T) {
		client := newMockRedis()
		client.publishErr = errors.New("connection reset")
		pub := NewUpdatePublisher(client, &log)

		// Must not panic or propagate; the durable append already happened.
		pub.Publish(ctx, update)
	})

	t.Run("a nil publisher is a no-op", func(t *testing.T) {
		var pub *UpdatePublisher
		pub.Publish(ctx, update)
	})
}
