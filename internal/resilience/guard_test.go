package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/lawrag/internal/config"
)

type observed struct {
	collaborator, outcome string
}

func newTestGuard(enabled bool) (*Guard, *[]observed) {
	var mu sync.Mutex
	var seen []observed
	g := NewGuard(config.ResilienceConfig{
		BreakerEnabled:      enabled,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}, func(c, o string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, observed{c, o})
	})
	return g, &seen
}

func TestCall_Success(t *testing.T) {
	g, seen := newTestGuard(true)

	v, err := Call(context.Background(), g, Judge, time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, []observed{{Judge, OutcomeOK}}, *seen)
}

func TestCall_TimeoutWhenCollaboratorIgnoresContext(t *testing.T) {
	g, seen := newTestGuard(false)
	release := make(chan struct{})
	defer close(release)

	// Given: a collaborator that blocks regardless of its context
	start := time.Now()
	_, err := Call(context.Background(), g, WebSearch, 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	// Then: the call returns at the deadline with ErrTimeout
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "timeout", Reason(err))
	assert.Equal(t, []observed{{WebSearch, OutcomeTimeout}}, *seen)
}

func TestCall_TimeoutWhenCollaboratorHonorsContext(t *testing.T) {
	_, err := Call(context.Background(), nil, Rerank, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestCall_ParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call(ctx, nil, Judge, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestCall_BreakerOpensAfterFailures(t *testing.T) {
	g, seen := newTestGuard(true)
	boom := errors.New("boom")
	calls := 0
	fail := func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	}

	// Given: two failures reach the trip threshold
	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), g, Generation, time.Second, fail)
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", g.State(Generation))

	// When: called again
	_, err := Call(context.Background(), g, Generation, time.Second, fail)

	// Then: the breaker rejects without calling the collaborator
	require.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, OutcomeBreakerOpen, (*seen)[2].outcome)

	// And: other collaborators are unaffected
	assert.Equal(t, "closed", g.State(Judge))
}

func TestCall_DisabledBreakerNeverOpens(t *testing.T) {
	g, _ := newTestGuard(false)
	for i := 0; i < 5; i++ {
		_, err := Call(context.Background(), g, Rewrite, time.Second, func(ctx context.Context) (int, error) {
			return 0, errors.New("down")
		})
		assert.NotErrorIs(t, err, ErrBreakerOpen)
	}
	assert.Equal(t, "closed", g.State(Rewrite))
}
