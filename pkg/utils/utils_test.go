package utils

import (
	"context"
	"testing"
	"time"

	api "github.com/etesami/traffic-accident-observer/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuckets(t *testing.T) {
	assert.Nil(t, ParseBuckets(""))
	assert.Equal(t, []float64{0.5, 1, 10}, ParseBuckets("0.5, 1,10"))
	assert.Nil(t, ParseBuckets("1,x,3"))
}

func TestCalculateRtt(t *testing.T) {
	base := time.UnixMilli(1700000000000)
	rtt, err := CalculateRtt(base, base.Add(3*time.Millisecond), base.Add(10*time.Millisecond), base.Add(12*time.Millisecond))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, rtt, 1e-9)

	_, err = CalculateRtt(time.Time{}, base, base, base)
	assert.Error(t, err)
}

func TestGrpcClientEmpty(t *testing.T) {
	var c GrpcClient
	assert.Nil(t, c.Load())
}

func TestMonitorConnectionStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var c GrpcClient
	go func() {
		MonitorConnection(ctx, api.Service{}, &c, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("MonitorConnection did not return after cancel")
	}
	assert.Nil(t, c.Load())
}
