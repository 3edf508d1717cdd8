package bench

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nas-ai/vaultcrypt/internal/hashing"
)

func TestRunStartupBenchmarkProducesValidResult(t *testing.T) {
	s := NewService(logrus.New(), hashing.SHA256, 64*1024)
	require.NoError(t, s.RunStartupBenchmark())

	res := s.GetResult()
	assert.True(t, res.IsValid)
	assert.Equal(t, int64(64*1024), res.TestSizeBytes)
	assert.Greater(t, res.SpeedMBps, 0.0)
	assert.True(t, s.IsReady())
}

func TestEstimateDurationZeroBeforeBenchmark(t *testing.T) {
	s := NewService(nil, hashing.SHA256, 64*1024)
	assert.Equal(t, int64(0), int64(s.EstimateDuration(1<<20)))
	assert.False(t, s.IsReady())
}

func TestEstimateDurationScalesWithSize(t *testing.T) {
	s := NewService(logrus.New(), hashing.SHA256, 256*1024)
	require.NoError(t, s.RunStartupBenchmark())

	small := s.EstimateDuration(1 << 20)
	large := s.EstimateDuration(10 << 20)
	assert.Greater(t, large, small)
}

func TestShouldWarnUsesDefaultThreshold(t *testing.T) {
	s := NewService(logrus.New(), hashing.SHA256, 64*1024)
	require.NoError(t, s.RunStartupBenchmark())
	assert.False(t, s.ShouldWarn(1024, 0))
}
