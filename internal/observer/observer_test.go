package observer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCollectsSamplesWhileRunning(t *testing.T) {
	o, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, o.Start(20*time.Millisecond))
	time.Sleep(120 * time.Millisecond)
	o.Stop()

	samples := o.Samples()
	assert.NotEmpty(t, samples)
	for _, s := range samples {
		assert.False(t, s.Timestamp.IsZero())
	}
}

func TestObserverStartIsIdempotent(t *testing.T) {
	o, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, o.Start(50*time.Millisecond))
	require.NoError(t, o.Start(50*time.Millisecond))
	o.Stop()
}

func TestSamplesReturnsCopyNotSharedSlice(t *testing.T) {
	o, err := New(nil)
	require.NoError(t, err)

	require.NoError(t, o.Start(10*time.Millisecond))
	time.Sleep(60 * time.Millisecond)
	o.Stop()

	a := o.Samples()
	require.NotEmpty(t, a)
	originalRSS := a[0].RSSBytes
	a[0].RSSBytes = 999999999

	b := o.Samples()
	assert.Equal(t, originalRSS, b[0].RSSBytes, "mutating a returned sample must not affect internal state")
}
