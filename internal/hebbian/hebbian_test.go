package hebbian

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnSuccessStrengthensTowardOne(t *testing.T) {
	e := Edge{Weight: 0.5}
	e = OnSuccess(e, DefaultAlpha)
	assert.Greater(t, e.Weight, 0.5)
	assert.LessOrEqual(t, e.Weight, 1.0)
	assert.Equal(t, 1, e.Successes)
}

func TestOnSuccessNeverExceedsOne(t *testing.T) {
	e := Edge{Weight: 1.0}
	for i := 0; i < 100; i++ {
		e = OnSuccess(e, DefaultAlpha)
	}
	assert.Equal(t, 1.0, e.Weight)
}

func TestOnFailureWeakensTowardZero(t *testing.T) {
	e := Edge{Weight: 0.5}
	e = OnFailure(e, DefaultAlpha)
	assert.Less(t, e.Weight, 0.5)
	assert.GreaterOrEqual(t, e.Weight, 0.0)
	assert.Equal(t, 1, e.Failures)
}

func TestOnFailureNeverBelowZero(t *testing.T) {
	e := Edge{Weight: 0.0}
	e = OnFailure(e, DefaultAlpha)
	assert.Equal(t, 0.0, e.Weight)
}

func TestDecayScalesByInverseEAtOneTau(t *testing.T) {
	e := Edge{Weight: 0.8}
	decayed := Decay(e, DefaultTau, DefaultTau)
	assert.InDelta(t, 0.8*math.Exp(-1), decayed.Weight, 1e-6)
}

func TestDecayNoElapsedTimeIsNoOp(t *testing.T) {
	e := Edge{Weight: 0.6}
	decayed := Decay(e, 0, DefaultTau)
	assert.InDelta(t, 0.6, decayed.Weight, 1e-9)
}

func TestShouldPrune(t *testing.T) {
	assert.True(t, ShouldPrune(Edge{Weight: 0.01}))
	assert.False(t, ShouldPrune(Edge{Weight: 0.5}))
}

func TestConsolidationDecayOverDays(t *testing.T) {
	e := Edge{Weight: 1.0}
	decayed := Decay(e, 14*24*time.Hour, 7*24*time.Hour)
	assert.InDelta(t, math.Exp(-2), decayed.Weight, 1e-6)
}
