package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/messaging"
)

func event(kind string) messaging.Message {
	return messaging.Message{Headers: map[string]string{messaging.HeaderEventType: kind}}
}

func TestDispatchFansOutByEventType(t *testing.T) {
	var calls []string
	handler := func(name string, err error) messaging.Handler {
		return func(context.Context, messaging.Message) error {
			calls = append(calls, name)
			return err
		}
	}
	engine := NewEngine(Params{
		Client: messaging.NewMemoryClient("events", 1),
		Logger: zap.NewNop(),
		Registrations: []HandlerRegistration{
			{Name: "audit", EventTypes: []string{"created", "changed"}, Handler: handler("audit", nil)},
			{Name: "notify", EventTypes: []string{"changed"}, Handler: handler("notify", errors.New("smtp down"))},
			{Name: "nil", EventTypes: []string{"created"}},
		},
	})

	require.NoError(t, engine.Dispatch(context.Background(), event("created")))
	assert.Equal(t, []string{"audit"}, calls)

	calls = nil
	err := engine.Dispatch(context.Background(), event("changed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: smtp down")
	assert.Equal(t, []string{"audit", "notify"}, calls)

	assert.NoError(t, engine.Dispatch(context.Background(), event("unknown")))
}

func TestDispatchSkipsHandlersThatAlreadySucceeded(t *testing.T) {
	calls := map[string]int{}
	failures := 2
	engine := NewEngine(Params{
		Client: messaging.NewMemoryClient("events", 1),
		Logger: zap.NewNop(),
		Registrations: []HandlerRegistration{
			{Name: "audit", EventTypes: []string{"changed"}, Handler: func(context.Context, messaging.Message) error {
				calls["audit"]++
				return nil
			}},
			{Name: "notify", EventTypes: []string{"changed"}, Handler: func(context.Context, messaging.Message) error {
				calls["notify"]++
				if failures > 0 {
					failures--
					return errors.New("smtp down")
				}
				return nil
			}},
		},
	})

	msg := event("changed")
	msg.Offset = 42
	require.Error(t, engine.Dispatch(context.Background(), msg))
	require.Error(t, engine.Dispatch(context.Background(), msg))
	require.NoError(t, engine.Dispatch(context.Background(), msg))
	assert.Equal(t, map[string]int{"audit": 1, "notify": 3}, calls)
	assert.Empty(t, engine.progress)

	next := event("changed")
	next.Offset = 43
	require.NoError(t, engine.Dispatch(context.Background(), next))
	assert.Equal(t, 2, calls["audit"])
}

func TestEngineConsumesUntilStopped(t *testing.T) {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 2

	client := messaging.NewMemoryClient("events", 8)
	var mu sync.Mutex
	got := 0
	done := make(chan struct{})
	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []HandlerRegistration{{
			Name:       "count",
			EventTypes: []string{"created"},
			Handler: func(context.Context, messaging.Message) error {
				mu.Lock()
				defer mu.Unlock()
				got++
				if got == 3 {
					close(done)
				}
				return nil
			},
		}},
	})

	require.NoError(t, engine.Start(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, client.Publish(context.Background(), event("created")))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not consumed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, engine.Stop(ctx))
}

func TestEngineDisabled(t *testing.T) {
	engine := NewEngine(Params{Client: messaging.NewMemoryClient("events", 1), Logger: zap.NewNop()})

	require.NoError(t, engine.Start(context.Background()))
	assert.NoError(t, engine.Stop(context.Background()))
}
