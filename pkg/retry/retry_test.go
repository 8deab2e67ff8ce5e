package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

type hintErr struct{ d time.Duration }

func (e hintErr) Error() string              { return "slow down" }
func (e hintErr) RetryAfter() time.Duration { return e.d }

func fast() *Retrier {
	return New(WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfRejects(t *testing.T) {
	r := New(WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithRetryIf(func(error) bool { return false }))
	calls := 0
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay_HonoursHint(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithJitter(0))
	assert.Equal(t, 3*time.Second, r.delay(1, hintErr{d: 3 * time.Second}))
	assert.Equal(t, time.Second, r.delay(1, errFlaky))
	assert.Equal(t, 2*time.Second, r.delay(2, errFlaky))
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), fast(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errFlaky
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}
