// Package service implements the sales document lifecycle (estimate,
// contract, invoice, payment, project), customer account provisioning and
// the CRM operations that raise business events.
package service

import (
	"context"
	"time"

	"github.com/garyjia/flooring-crm/internal/apperr"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventEmitter publishes business events once the transition that caused
// them has been committed
type EventEmitter interface {
	EstimateApproved(ctx context.Context, estimateID int64) error
	ContractSigned(ctx context.Context, contractID int64) error
	FormSubmitted(ctx context.Context, contactID int64, form map[string]interface{}) error
	LeadStageChanged(ctx context.Context, contactID int64, stage string) error
	AppointmentScheduled(ctx context.Context, appointmentID int64) error
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

type noopEmitter struct{}

func (noopEmitter) EstimateApproved(context.Context, int64) error { return nil }
func (noopEmitter) ContractSigned(context.Context, int64) error   { return nil }
func (noopEmitter) FormSubmitted(context.Context, int64, map[string]interface{}) error {
	return nil
}
func (noopEmitter) LeadStageChanged(context.Context, int64, string) error { return nil }
func (noopEmitter) AppointmentScheduled(context.Context, int64) error     { return nil }

// NoopEmitter discards events
var NoopEmitter EventEmitter = noopEmitter{}

func persistErr(op string, err error) error {
	return apperr.NewPersistenceError(op, err)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func int64Ptr(v int64) *int64 {
	return &v
}
