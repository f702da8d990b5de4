package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBudget(t *testing.T) {
	l := New(Config{Max: 2, Window: time.Minute})

	res := l.Allow("ip:1.2.3.4", false, nil)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	res = l.Allow("ip:1.2.3.4", false, nil)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestRejectOverBudget(t *testing.T) {
	l := New(Config{Max: 2, Window: time.Minute})

	l.Allow("ip:1.2.3.4", false, nil)
	l.Allow("ip:1.2.3.4", false, nil)
	res := l.Allow("ip:1.2.3.4", false, nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)
}

func TestWindowReset(t *testing.T) {
	l := New(Config{Max: 1, Window: time.Minute})

	base := time.Now()
	l.now = func() time.Time { return base }

	assert.True(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)
	assert.False(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)

	// Advance past the window boundary
	l.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	assert.True(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)
}

func TestIndependentIdentities(t *testing.T) {
	l := New(Config{Max: 1, Window: time.Minute})

	assert.True(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)
	assert.False(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)

	// A different identity has its own budget
	assert.True(t, l.Allow("ip:5.6.7.8", false, nil).Allowed)
	assert.True(t, l.Allow("key:cd_abc", true, nil).Allowed)
}

func TestKeyedBurst(t *testing.T) {
	l := New(Config{Max: 1, Window: time.Minute, KeyBurst: 2})

	// Keyed callers get Max + KeyBurst
	assert.True(t, l.Allow("key:cd_abc", true, nil).Allowed)
	assert.True(t, l.Allow("key:cd_abc", true, nil).Allowed)
	assert.True(t, l.Allow("key:cd_abc", true, nil).Allowed)
	assert.False(t, l.Allow("key:cd_abc", true, nil).Allowed)

	// Anonymous callers do not
	assert.True(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)
	assert.False(t, l.Allow("ip:1.2.3.4", false, nil).Allowed)
}

func TestPerKeyOverride(t *testing.T) {
	l := New(Config{Max: 1, Window: time.Minute, KeyBurst: 0})

	override := 3
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("key:cd_abc", true, &override).Allowed, "request %d", i)
	}
	assert.False(t, l.Allow("key:cd_abc", true, &override).Allowed)

	// Zero or negative overrides fall back to the default budget
	zero := 0
	assert.True(t, l.Allow("key:cd_other", true, &zero).Allowed)
	assert.False(t, l.Allow("key:cd_other", true, &zero).Allowed)
}

func TestSweepExpiredWindows(t *testing.T) {
	l := New(Config{Max: 1, Window: time.Minute})

	base := time.Now()
	l.now = func() time.Time { return base }
	l.Allow("ip:old", false, nil)

	l.now = func() time.Time { return base.Add(2 * time.Minute) }

	l.mu.Lock()
	l.sweep(l.now())
	_, exists := l.windows["ip:old"]
	l.mu.Unlock()
	assert.False(t, exists, "expired window should be swept")
}
