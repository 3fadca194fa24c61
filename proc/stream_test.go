package proc

import (
	"context"
	"encoding/binary"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s16(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func TestScaleS16(t *testing.T) {
	data := s16(1000, -1000, 0)
	ScaleS16(data, 50)
	assert.Equal(t, s16(500, -500, 0), data)

	data = s16(30000, -30000)
	ScaleS16(data, 200)
	assert.Equal(t, s16(32767, -32768), data)

	data = s16(1234)
	ScaleS16(data, 100)
	assert.Equal(t, s16(1234), data)
}

func openGate() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestStreamProviderDrainsSilence(t *testing.T) {
	p := NewStreamProvider(context.Background(), openGate)
	var finished atomic.Bool
	p.OnFinish = func() { finished.Store(true) }

	frame := []byte{1, 2, 3}
	p.PushFrame(frame)
	p.PushFrame(nil)

	got, err := p.ProvideOpusFrame()
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	silence := 0
	for {
		f, err := p.ProvideOpusFrame()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, OpusSilence, f)
		silence++
		require.Less(t, silence, 1000)
	}
	assert.Equal(t, int(SilenceDuration.Milliseconds()/20)+1, silence)
	assert.True(t, finished.Load())
}

func TestStreamProviderUnderrunSendsSilence(t *testing.T) {
	p := NewStreamProvider(context.Background(), nil)

	f, err := p.ProvideOpusFrame()
	require.NoError(t, err)
	assert.Equal(t, OpusSilence, f)
}

func TestStreamProviderClosedGateBlocksUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	paused := make(chan struct{})
	p := NewStreamProvider(ctx, func() <-chan struct{} { return paused })

	done := make(chan error, 1)
	go func() {
		_, err := p.ProvideOpusFrame()
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("provider ignored the pause gate")
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	assert.ErrorIs(t, <-done, io.EOF)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	release := make(chan struct{})
	errs := make(chan error, 5)

	for range 5 {
		go func() {
			errs <- p.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				<-release
				running.Add(-1)
				return nil
			})
		}()
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	for range 5 {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int32(2), peak.Load())
}

func TestPoolCancelledWait(t *testing.T) {
	p := NewPool(1)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, p, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
	close(hold)
}
