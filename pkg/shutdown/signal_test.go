package shutdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignal_InitialState(t *testing.T) {
	s := New()

	assert.False(t, s.IsSet())
	assert.Equal(t, "", s.Reason())
	select {
	case <-s.Done():
		t.Fatal("done channel closed before Set")
	default:
	}
}

func TestSignal_SetIsIdempotent(t *testing.T) {
	s := New()

	assert.True(t, s.Set("operator"))
	assert.False(t, s.Set("interrupt"))

	assert.True(t, s.IsSet())
	assert.Equal(t, "operator", s.Reason())
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed after Set")
	}
}

func TestSignal_ConcurrentSetTransitionsOnce(t *testing.T) {
	s := New()

	var transitions int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Set("race") {
				atomic.AddInt64(&transitions, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), transitions)
	assert.True(t, s.IsSet())
}

func TestSignal_DoneWakesWaiters(t *testing.T) {
	s := New()
	woke := make(chan struct{})

	go func() {
		<-s.Done()
		close(woke)
	}()

	s.Set("test")

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}
