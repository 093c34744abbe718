// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackState_Transitions(t *testing.T) {
	cases := []struct {
		from, to PlaybackState
		ok       bool
	}{
		{StateIdle, StatePaused, true},
		{StatePaused, StatePlaying, true},
		{StatePlaying, StatePaused, true},
		{StatePlaying, StateStopped, true},
		{StateStopped, StatePlaying, false},
		{StateStopped, StateStopped, true},
		{StatePaused, StateIdle, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStateTracker(t *testing.T) {
	tr := NewStateTracker()
	require.Equal(t, StateIdle, tr.Get())

	prev, err := tr.Set(StatePaused)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, prev)

	_, err = tr.Set(StateStopped)
	require.NoError(t, err)

	_, err = tr.Set(StatePlaying)
	require.ErrorIs(t, err, ErrIllegalStateTransition)
	assert.Equal(t, StateStopped, tr.Get())
}

func TestMessage_Fatal(t *testing.T) {
	assert.True(t, Message{Kind: MessageError}.Fatal())
	assert.False(t, Message{Kind: MessageWarning}.Fatal())
	assert.False(t, Message{Kind: MessageEOS}.Fatal())
}
