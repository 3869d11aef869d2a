package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		trigger Trigger
		want    string
		wantErr bool
	}{
		{"send draft", "draft", TriggerSend, "sent", false},
		{"view sent", "sent", TriggerView, "viewed", false},
		{"approve viewed", "viewed", TriggerApprove, "approved", false},
		{"reject viewed", "viewed", TriggerReject, "rejected", false},
		{"approve sent", "sent", TriggerApprove, "approved", false},
		{"convert approved", "approved", TriggerConvert, "converted", false},
		{"view draft", "draft", TriggerView, "", true},
		{"convert rejected", "rejected", TriggerConvert, "", true},
		{"convert viewed", "viewed", TriggerConvert, "", true},
		{"send viewed", "viewed", TriggerSend, "", true},
		{"anything after converted", "converted", TriggerSend, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Estimate(tt.from)
			require.NoError(t, err)

			err = m.Fire(context.Background(), tt.trigger)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, m.State().String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.State().String())
		})
	}
}

func TestEstimateLifecycle_NeverMovesBackward(t *testing.T) {
	order := map[string]int{"draft": 0, "sent": 1, "viewed": 2, "approved": 3, "rejected": 3, "converted": 4}
	all := []Trigger{TriggerSend, TriggerView, TriggerApprove, TriggerReject, TriggerConvert, TriggerSign, TriggerCancel, TriggerPay}

	for from := range order {
		for _, trig := range all {
			m, err := Estimate(from)
			require.NoError(t, err)
			if m.Fire(context.Background(), trig) == nil {
				assert.Greater(t, order[m.State().String()], order[from], "%s --%s--> %s", from, trig, m.State())
			}
		}
	}
}

func TestContractLifecycle(t *testing.T) {
	m, err := Contract("draft")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Fire(ctx, TriggerSend))
	require.NoError(t, m.Fire(ctx, TriggerView))
	require.NoError(t, m.Fire(ctx, TriggerSign))
	assert.Equal(t, "signed", m.State().String())
	assert.True(t, m.IsTerminal())

	assert.ErrorIs(t, m.Fire(ctx, TriggerCancel), ErrInvalidTransition)
}

func TestInvoiceLifecycle_Payments(t *testing.T) {
	tests := []struct {
		from    string
		settled bool
		want    string
	}{
		{"draft", false, "partially_paid"},
		{"sent", true, "paid"},
		{"viewed", false, "partially_paid"},
		{"partially_paid", false, "partially_paid"},
		{"partially_paid", true, "paid"},
		{"overdue", true, "paid"},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.want, func(t *testing.T) {
			m, err := Invoice(tt.from)
			require.NoError(t, err)

			require.NoError(t, m.Fire(WithSettled(context.Background(), tt.settled), TriggerPay))
			assert.Equal(t, tt.want, m.State().String())
		})
	}
}

func TestInvoiceLifecycle_PaidIsTerminal(t *testing.T) {
	m, err := Invoice("paid")
	require.NoError(t, err)

	assert.True(t, m.IsTerminal())
	assert.ErrorIs(t, m.Fire(context.Background(), TriggerPay), ErrInvalidTransition)
}

func TestLifecycle_UnknownStatus(t *testing.T) {
	_, err := Estimate("archived")
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.False(t, IsInvoiceStatus("archived"))
	assert.True(t, IsContractStatus("cancelled"))
	assert.True(t, IsEstimateStatus("converted"))
}
