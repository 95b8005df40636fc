package server

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/config"
)

// A graceful Stop must make Start return nil, so the caller's
// fatal-on-error path only fires for real failures.
func TestServer_GracefulStopReturnsNil(t *testing.T) {
	srv := NewServer(nil, nil, nil, &config.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		started := srv.server != nil
		srv.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after graceful shutdown, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer(nil, nil, nil, &config.ServerConfig{Host: "127.0.0.1", Port: 0}, zap.NewNop())
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start returned %v, want nil", err)
	}
}
