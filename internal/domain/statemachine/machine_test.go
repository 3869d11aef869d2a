package statemachine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stateA State = "a"
	stateB State = "b"
	stateC State = "c"
)

func TestBuilder_Configure(t *testing.T) {
	b := NewBuilder(stateA, stateB)

	config := b.Configure(stateA)
	require.NotNil(t, config)
	assert.Same(t, config, b.Configure(stateA), "Configure() should return same config for same state")
}

func TestBuilder_PanicsOnUnknownStates(t *testing.T) {
	b := NewBuilder(stateA, stateB)

	assert.Panics(t, func() { b.Configure(State("zzz")) })
	assert.Panics(t, func() { b.Build(State("zzz")) })
	assert.Panics(t, func() { b.Configure(stateA).Permit(TriggerSend, State("zzz")) })
}

func TestStateConfiguration_Permit(t *testing.T) {
	b := NewBuilder(stateA, stateB)
	b.Configure(stateA).Permit(TriggerSend, stateB)

	m := b.Build(stateA)

	assert.True(t, m.CanFire(TriggerSend))
	require.NoError(t, m.Fire(context.Background(), TriggerSend))
	assert.Equal(t, stateB, m.State())
	assert.True(t, m.IsTerminal())
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	b := NewBuilder(stateA, stateB, stateC)
	b.Configure(stateA).
		PermitIf(TriggerPay, stateB, settled).
		PermitIf(TriggerPay, stateC, notSettled)

	t.Run("first guard passes", func(t *testing.T) {
		m := b.Build(stateA)
		require.NoError(t, m.Fire(WithSettled(context.Background(), true), TriggerPay))
		assert.Equal(t, stateB, m.State())
	})

	t.Run("second guard passes", func(t *testing.T) {
		m := b.Build(stateA)
		require.NoError(t, m.Fire(WithSettled(context.Background(), false), TriggerPay))
		assert.Equal(t, stateC, m.State())
	})
}

func TestStateConfiguration_GuardFails(t *testing.T) {
	b := NewBuilder(stateA, stateB)
	b.Configure(stateA).PermitIf(TriggerSend, stateB, func(context.Context) bool { return false })

	m := b.Build(stateA)
	err := m.Fire(context.Background(), TriggerSend)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGuardFailed))
	assert.Equal(t, stateA, m.State())
}

func TestStateMachine_FireUnknownTrigger(t *testing.T) {
	b := NewBuilder(stateA, stateB)
	b.Configure(stateA).Permit(TriggerSend, stateB)

	m := b.Build(stateA)
	err := m.Fire(context.Background(), TriggerSign)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, stateA, m.State())
}

func TestBuild_MachinesAreIndependent(t *testing.T) {
	b := NewBuilder(stateA, stateB)
	b.Configure(stateA).Permit(TriggerSend, stateB)

	m1 := b.Build(stateA)
	m2 := b.Build(stateA)
	require.NoError(t, m1.Fire(context.Background(), TriggerSend))

	assert.Equal(t, stateB, m1.State())
	assert.Equal(t, stateA, m2.State())
}

func TestPermittedTriggers_Sorted(t *testing.T) {
	m, err := Contract("draft")
	require.NoError(t, err)

	assert.Equal(t, []Trigger{TriggerCancel, TriggerSend}, m.PermittedTriggers())
}
