package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jzx17/matrixpipe/internal/testutils"
	"github.com/jzx17/matrixpipe/pkg/channel"
	"github.com/jzx17/matrixpipe/pkg/matrix"
	"github.com/jzx17/matrixpipe/pkg/shutdown"
	"github.com/jzx17/matrixpipe/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProducer(t *testing.T, size int, interval time.Duration, gen matrix.Generator, ch *channel.Channel, sig *shutdown.Signal) *Producer {
	t.Helper()
	p, err := NewProducer(&ProducerConfig{Size: size, Interval: interval}, gen, ch, sig)
	require.NoError(t, err)
	return p
}

// drain empties ch and returns the queued messages
func drain(ch *channel.Channel) []channel.Message {
	var msgs []channel.Message
	for {
		msg, ok := ch.TryReceive()
		if !ok {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func waitDone(t *testing.T, done <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(within):
		t.Fatalf("worker did not terminate within %v", within)
	}
}

func TestNewProducer_Validation(t *testing.T) {
	gen := matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1)
	ch := channel.New()
	sig := shutdown.New()

	_, err := NewProducer(nil, gen, ch, sig)
	assert.Error(t, err)

	_, err = NewProducer(&ProducerConfig{Size: 0, Interval: time.Second}, gen, ch, sig)
	assert.Error(t, err)

	_, err = NewProducer(&ProducerConfig{Size: 2, Interval: 0}, gen, ch, sig)
	assert.Error(t, err)

	_, err = NewProducer(DefaultProducerConfig(2), nil, ch, sig)
	assert.Error(t, err)

	p, err := NewProducer(DefaultProducerConfig(2), gen, ch, sig)
	require.NoError(t, err)
	assert.Equal(t, WorkerStateIdle, p.State())
}

func TestProducer_GeneratesUntilStopped(t *testing.T) {
	ch := channel.New()
	sig := shutdown.New()
	p := newTestProducer(t, 3, 2*time.Millisecond, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()

	require.Eventually(t, func() bool { return p.Stats().Generated >= 3 }, time.Second, time.Millisecond)
	sig.Set("test")
	waitDone(t, p.Done(), time.Second)
	require.NoError(t, <-errCh)

	msgs := drain(ch)
	require.NotEmpty(t, msgs)

	last := msgs[len(msgs)-1]
	assert.True(t, last.IsEnd(), "End must be the last message")
	pairs := msgs[:len(msgs)-1]
	assert.Equal(t, int(p.Stats().Generated), len(pairs))

	for _, msg := range pairs {
		assert.False(t, msg.IsEnd())
		assert.NotEmpty(t, msg.Pair.ID)
		assert.True(t, msg.Pair.A.IsSquare())
		assert.Equal(t, 3, msg.Pair.A.Rows())
		assert.Equal(t, 3, msg.Pair.B.Rows())
	}
	assert.Equal(t, WorkerStateTerminated, p.State())
}

func TestProducer_StopBeforeFirstPair(t *testing.T) {
	ch := channel.New()
	sig := shutdown.New()
	sig.Set("early")
	p := newTestProducer(t, 2, time.Second, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)

	require.NoError(t, p.Run(context.Background()))

	msgs := drain(ch)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsEnd())
	assert.Equal(t, int64(0), p.Stats().Generated)
}

func TestProducer_RunTwice(t *testing.T) {
	ch := channel.New()
	sig := shutdown.New()
	sig.Set("early")
	p := newTestProducer(t, 2, time.Second, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)

	require.NoError(t, p.Run(context.Background()))
	assert.Error(t, p.Run(context.Background()))

	// the second call must not queue another End
	assert.Len(t, drain(ch), 1)
}

func TestProducer_ContextCancelStillQueuesEnd(t *testing.T) {
	ch := channel.New()
	sig := shutdown.New()
	p := newTestProducer(t, 2, time.Hour, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Stats().Generated == 1 }, time.Second, time.Millisecond)
	cancel()
	waitDone(t, p.Done(), time.Second)
	require.NoError(t, <-errCh)

	msgs := drain(ch)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsEnd())
	assert.True(t, msgs[1].IsEnd())
	assert.False(t, sig.IsSet(), "interruption of the producer alone does not raise the signal")
}

func TestProducer_GeneratorPanicStillQueuesEnd(t *testing.T) {
	ch := channel.New()
	sig := shutdown.New()

	var calls int64
	gen := matrix.GeneratorFunc(func(n int) matrix.Matrix {
		if atomic.AddInt64(&calls, 1) > 2 {
			panic("generator exhausted")
		}
		return matrix.New(n, n)
	})
	p := newTestProducer(t, 2, time.Millisecond, gen, ch, sig)

	err := p.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrWorkerPanic)
	msgs := drain(ch)
	require.Len(t, msgs, 2)
	assert.NotEmpty(t, msgs[0].Pair.ID)
	assert.True(t, msgs[1].IsEnd())
	assert.Equal(t, WorkerStateTerminated, p.State())
}

func TestProducer_SealedChannel(t *testing.T) {
	ch := channel.New()
	require.NoError(t, ch.SendEnd())
	sig := shutdown.New()
	p := newTestProducer(t, 2, time.Millisecond, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)

	err := p.Run(context.Background())

	assert.ErrorIs(t, err, types.ErrChannelSealed)
	assert.Equal(t, 1, ch.Len())
}

func TestProducer_BoundedChannelReleasedBySignal(t *testing.T) {
	ch := channel.New(channel.WithCapacity(1))
	sig := shutdown.New()
	p := newTestProducer(t, 2, time.Millisecond, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(context.Background()) }()

	// first pair fills the channel, the second send blocks
	require.Eventually(t, func() bool { return p.Stats().Generated == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, WorkerStateRunning, p.State())

	sig.Set("test")
	waitDone(t, p.Done(), time.Second)
	require.NoError(t, <-errCh)

	msgs := drain(ch)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsEnd())
}

func TestProducer_PacingWithMockClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := testutils.NewMockClock(t)
	ch := channel.New()
	sig := shutdown.New()
	p, err := NewProducer(&ProducerConfig{
		Size:     2,
		Interval: time.Second,
		Clock:    testutils.NewClockWrapper(mClock),
	}, matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)
	require.NoError(t, err)

	go func() { _ = p.Run(ctx) }()

	// one pair per interval
	d := testutils.WaitForTimer(t, mClock)
	assert.Equal(t, time.Second, d)
	assert.Equal(t, 1, ch.Len())

	mClock.Advance(d).MustWait(ctx)
	testutils.WaitForTimer(t, mClock)
	assert.Equal(t, 2, ch.Len())

	// the pacing wait ends as soon as the signal is raised
	sig.Set("test")
	waitDone(t, p.Done(), time.Second)

	msgs := drain(ch)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[2].IsEnd())
	assert.Equal(t, int64(2), p.Stats().Generated)
}
