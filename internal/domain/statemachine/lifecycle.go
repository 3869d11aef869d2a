package statemachine

import (
	"context"
	"fmt"

	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

type settledKey struct{}

// WithSettled marks whether the payment being recorded settles the invoice.
// The invoice lifecycle uses it to choose between paid and partially_paid.
func WithSettled(ctx context.Context, settled bool) context.Context {
	return context.WithValue(ctx, settledKey{}, settled)
}

func settled(ctx context.Context) bool {
	v, _ := ctx.Value(settledKey{}).(bool)
	return v
}

func notSettled(ctx context.Context) bool {
	return !settled(ctx)
}

var (
	estimateLifecycle = buildEstimateLifecycle()
	contractLifecycle = buildContractLifecycle()
	invoiceLifecycle  = buildInvoiceLifecycle()
)

// Estimate returns a state machine for an estimate in the given status
func Estimate(status string) (StateMachine, error) {
	return buildFrom(estimateLifecycle, status)
}

// Contract returns a state machine for a contract in the given status
func Contract(status string) (StateMachine, error) {
	return buildFrom(contractLifecycle, status)
}

// Invoice returns a state machine for an invoice in the given status
func Invoice(status string) (StateMachine, error) {
	return buildFrom(invoiceLifecycle, status)
}

func buildFrom(lifecycle Builder, status string) (StateMachine, error) {
	if !lifecycle.(*builder).states[State(status)] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, status)
	}
	return lifecycle.Build(State(status)), nil
}

// IsEstimateStatus reports whether s belongs to the estimate lifecycle
func IsEstimateStatus(s string) bool {
	return estimateLifecycle.(*builder).states[State(s)]
}

// IsContractStatus reports whether s belongs to the contract lifecycle
func IsContractStatus(s string) bool {
	return contractLifecycle.(*builder).states[State(s)]
}

// IsInvoiceStatus reports whether s belongs to the invoice lifecycle
func IsInvoiceStatus(s string) bool {
	return invoiceLifecycle.(*builder).states[State(s)]
}

func buildEstimateLifecycle() Builder {
	var (
		draft     = State(entity.EstimateStatusDraft)
		sent      = State(entity.EstimateStatusSent)
		viewed    = State(entity.EstimateStatusViewed)
		approved  = State(entity.EstimateStatusApproved)
		rejected  = State(entity.EstimateStatusRejected)
		converted = State(entity.EstimateStatusConverted)
	)
	b := NewBuilder(draft, sent, viewed, approved, rejected, converted)

	b.Configure(draft).
		Permit(TriggerSend, sent)

	b.Configure(sent).
		Permit(TriggerView, viewed).
		Permit(TriggerApprove, approved).
		Permit(TriggerReject, rejected)

	b.Configure(viewed).
		Permit(TriggerApprove, approved).
		Permit(TriggerReject, rejected)

	b.Configure(approved).
		Permit(TriggerConvert, converted)

	return b
}

func buildContractLifecycle() Builder {
	var (
		draft     = State(entity.ContractStatusDraft)
		sent      = State(entity.ContractStatusSent)
		viewed    = State(entity.ContractStatusViewed)
		signed    = State(entity.ContractStatusSigned)
		cancelled = State(entity.ContractStatusCancelled)
	)
	b := NewBuilder(draft, sent, viewed, signed, cancelled)

	b.Configure(draft).
		Permit(TriggerSend, sent).
		Permit(TriggerCancel, cancelled)

	b.Configure(sent).
		Permit(TriggerView, viewed).
		Permit(TriggerSign, signed).
		Permit(TriggerCancel, cancelled)

	b.Configure(viewed).
		Permit(TriggerSign, signed).
		Permit(TriggerCancel, cancelled)

	return b
}

func buildInvoiceLifecycle() Builder {
	var (
		draft         = State(entity.InvoiceStatusDraft)
		sent          = State(entity.InvoiceStatusSent)
		viewed        = State(entity.InvoiceStatusViewed)
		partiallyPaid = State(entity.InvoiceStatusPartiallyPaid)
		paid          = State(entity.InvoiceStatusPaid)
		overdue       = State(entity.InvoiceStatusOverdue)
		cancelled     = State(entity.InvoiceStatusCancelled)
	)
	b := NewBuilder(draft, sent, viewed, partiallyPaid, paid, overdue, cancelled)

	payable := func(c StateConfiguration) StateConfiguration {
		return c.
			PermitIf(TriggerPay, paid, settled).
			PermitIf(TriggerPay, partiallyPaid, notSettled)
	}

	payable(b.Configure(draft)).
		Permit(TriggerSend, sent).
		Permit(TriggerCancel, cancelled)

	payable(b.Configure(sent)).
		Permit(TriggerView, viewed).
		Permit(TriggerMarkOverdue, overdue).
		Permit(TriggerCancel, cancelled)

	payable(b.Configure(viewed)).
		Permit(TriggerMarkOverdue, overdue).
		Permit(TriggerCancel, cancelled)

	payable(b.Configure(partiallyPaid)).
		Permit(TriggerMarkOverdue, overdue)

	payable(b.Configure(overdue)).
		Permit(TriggerCancel, cancelled)

	return b
}
