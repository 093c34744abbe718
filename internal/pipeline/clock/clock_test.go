// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMock_AdvanceFiresInOrder(t *testing.T) {
	start := time.Unix(1700000000, 0)
	m := NewMock(start)

	var fired []string
	m.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	m.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	stopped := m.AfterFunc(time.Second, func() { fired = append(fired, "stopped") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
	assert.Equal(t, 2, m.Pending())

	m.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, start.Add(1500*time.Millisecond), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Zero(t, m.Pending())
}

func TestMock_RearmInsideCallback(t *testing.T) {
	m := NewMock(time.Unix(0, 0))
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		m.AfterFunc(time.Second, tick)
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(5 * time.Second)
	assert.Equal(t, 5, ticks)
	assert.Equal(t, 1, m.Pending())
}

func TestReal_AfterFuncStop(t *testing.T) {
	timer := Real{}.AfterFunc(time.Hour, func() { t.Error("must not fire") })
	assert.True(t, timer.Stop())
}
