package action

import (
	"fmt"
	"sync"

	"github.com/garyjia/flooring-crm/internal/application/port"
	"github.com/garyjia/flooring-crm/internal/application/service"
)

// Registry maps action kinds to handlers. It is built once at startup and
// injected into the engine.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewRegistry creates a registry holding the given handlers. Unknown kinds
// and duplicates are rejected.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[Kind]Handler, len(handlers))}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler
func (r *Registry) Register(h Handler) error {
	if !h.Kind().IsValid() {
		return fmt.Errorf("unknown action kind %q", h.Kind())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Kind()]; exists {
		return fmt.Errorf("action %q registered twice", h.Kind())
	}
	r.handlers[h.Kind()] = h
	return nil
}

// Lookup returns the handler for a kind name as stored in a workflow
func (r *Registry) Lookup(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[Kind(kind)]
	return h, ok
}

// Catalog describes every registered action in catalog order
func (r *Registry) Catalog() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.handlers))
	for _, k := range AllKinds() {
		if h, ok := r.handlers[k]; ok {
			out = append(out, h.Describe())
		}
	}
	return out
}

// Deps are the collaborators of the built-in handlers
type Deps struct {
	Templates service.TemplateService
	Customers service.CustomerService
	Projects  service.ProjectService
	Contracts service.ContractService
	Invoices  service.InvoiceService
	Tasks     port.TaskRepository
	Sink      port.NotificationSink
	Messenger port.StaffMessenger
	Logger    Logger
}

// NewDefaultRegistry registers every built-in action
func NewDefaultRegistry(deps Deps) (*Registry, error) {
	return NewRegistry(
		NewSendEmail(deps.Templates, deps.Sink, deps.Logger),
		NewSendSMS(deps.Templates, deps.Sink, deps.Logger),
		NewCreateTask(deps.Tasks, deps.Messenger, deps.Logger),
		NewCreateCustomerAccount(deps.Customers),
		NewCreateProject(deps.Projects),
		NewConvertToContract(deps.Contracts),
		NewCreateInvoice(deps.Invoices, deps.Contracts),
	)
}
