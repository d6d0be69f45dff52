package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewSessionStore(client, time.Minute)

	session, err := engine.NewSession(sampleQuiz(), "master-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("put: %v", err)
	}
	key := "quiz:session:" + session.ID()
	if got, _ := mr.Get(key); got != "quiz-1" {
		t.Fatalf("expected liveness marker with quiz id, got %q", got)
	}
	if _, err := store.Get(ctx, session.ID()); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := store.Delete(ctx, session.ID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected redis key to be removed")
	}
	if _, err := store.Get(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStorePutFailsWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	store := NewSessionStore(client, time.Minute)
	session, _ := engine.NewSession(sampleQuiz(), "master-1")
	if err := store.Put(context.Background(), session); err == nil {
		t.Fatalf("expected error with redis unavailable")
	}
	if list, _ := store.List(context.Background()); len(list) != 0 {
		t.Fatalf("failed put must not register the session")
	}
}

func TestPublisherPublishesAndTracksVersion(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	pub := NewPublisher(client, time.Minute)

	sub := client.Subscribe(ctx, "quiz:session:s1:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := domain.Event{SessionID: "s1", Type: domain.EventRoundOpened, Version: 7, Payload: map[string]int{"index": 0}}
	if err := pub.Deliver(ctx, event); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got domain.Event
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != domain.EventRoundOpened || got.Version != 7 {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
	}

	if v, _ := mr.Get("quiz:session:s1:version"); v != "7" {
		t.Fatalf("expected version 7, got %q", v)
	}
}
