package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor_Width(t *testing.T) {
	assert.Equal(t, 7, NewBatchProcessor(0).Width(7))
	assert.Equal(t, 3, NewBatchProcessor(3).Width(7))
	assert.Equal(t, 2, NewBatchProcessor(8).Width(2))
	assert.Equal(t, 5, NewBatchProcessor(-4).Width(5))
}

func TestBatchProcessor_RunAllAtOnce(t *testing.T) {
	var running, peak int32
	release := make(chan struct{})

	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = JobFunc(func(ctx context.Context) Result {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return &mockResult{}
		})
	}

	done := make(chan []Result)
	go func() { done <- NewBatchProcessor(0).Run(context.Background(), jobs) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 6 }, time.Second, time.Millisecond,
		"zero concurrency should start every job together")
	close(release)

	results := <-done
	assert.Len(t, results, 6)
	assert.Equal(t, int32(6), atomic.LoadInt32(&peak))
}

func TestBatchProcessor_Empty(t *testing.T) {
	results := NewBatchProcessor(2).Run(context.Background(), nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}
