package drain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateDrainsCleanly(t *testing.T) {
	g := New()

	assert.True(t, g.Enter())
	assert.Equal(t, 1, g.Active())
	g.Leave()
	assert.Equal(t, 0, g.Active())

	done := make(chan struct{})
	drained := g.Wait(done)
	assert.True(t, drained)
}

func TestGateRejectsCallsAfterClose(t *testing.T) {
	g := New()
	g.Close()

	assert.False(t, g.Enter())
	assert.Equal(t, 0, g.Active())
}

func TestGateWaitBlocksUntilActiveCallsLeave(t *testing.T) {
	g := New()
	require := assert.New(t)
	require.True(g.Enter())

	g.Close()

	waitDone := make(chan bool, 1)
	go func() {
		waitDone <- g.Wait(make(chan struct{}))
	}()

	select {
	case <-waitDone:
		t.Fatal("Wait returned before the in-flight call left")
	case <-time.After(20 * time.Millisecond):
	}

	g.Leave()

	select {
	case drained := <-waitDone:
		require.True(drained)
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after Leave")
	}
}

func TestGateWaitReturnsFalseWhenDoneFiresFirst(t *testing.T) {
	g := New()
	assert.True(t, g.Enter())

	done := make(chan struct{})
	close(done)

	assert.False(t, g.Wait(done))
}
