package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSequencePolicyMatchesSpecBudget(t *testing.T) {
	t.Parallel()
	require.Equal(t, 3, Sequence.MaxAttempts)
	require.Equal(t, 300*time.Millisecond, Sequence.Delay)
}

func TestScanPolicyMatchesSpecBudget(t *testing.T) {
	t.Parallel()
	require.Equal(t, 10, Scan.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, Scan.Delay)
}

func TestCounterRetriesThenExhausts(t *testing.T) {
	t.Parallel()

	c := NewCounter(Policy{MaxAttempts: 3, Delay: 10 * time.Millisecond})
	cause := errors.New("transient")

	d, err := c.Attempt(cause)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, d)

	d, err = c.Attempt(cause)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, d)

	_, err = c.Attempt(cause)
	require.Error(t, err)
	var exhausted *ErrExhausted
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempt)
	require.ErrorIs(t, exhausted, cause)
}

func TestCounterSingleAttemptPolicyExhaustsImmediately(t *testing.T) {
	t.Parallel()

	c := NewCounter(Policy{MaxAttempts: 1, Delay: time.Millisecond})
	_, err := c.Attempt(errors.New("boom"))
	require.Error(t, err)
	require.Equal(t, 1, c.Attempts())
}
