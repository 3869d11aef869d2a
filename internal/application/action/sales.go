package action

import (
	"context"
	"time"

	"github.com/garyjia/flooring-crm/internal/application/service"
	"github.com/garyjia/flooring-crm/internal/apperr"
	"github.com/garyjia/flooring-crm/internal/domain/entity"
)

// CreateCustomerAccount provisions a portal account for a contact. It is
// idempotent per contact.
type CreateCustomerAccount struct {
	customers service.CustomerService
}

// NewCreateCustomerAccount creates the create_customer_account handler
func NewCreateCustomerAccount(customers service.CustomerService) *CreateCustomerAccount {
	return &CreateCustomerAccount{customers: customers}
}

func (h *CreateCustomerAccount) Kind() Kind { return KindCreateCustomerAccount }

func (h *CreateCustomerAccount) Describe() Descriptor {
	return Descriptor{
		Kind:        KindCreateCustomerAccount,
		Label:       "Create Customer Account",
		Description: "Create a customer portal account and send login credentials",
		Fields: []Field{
			{Name: "contact_id", Type: "number", Required: true},
			{Name: "email", Type: "string", Description: "Defaults to the contact email"},
			{Name: "name", Type: "string"},
			{Name: "phone", Type: "string"},
			{Name: "send_welcome_email", Type: "boolean", Description: "Defaults to true"},
		},
	}
}

func (h *CreateCustomerAccount) Execute(ctx context.Context, in Input) (*Result, error) {
	contactID := in.Int64Ptr("contact_id")
	if contactID == nil && in.String("email") == "" {
		return nil, apperr.NewActionInputError(string(KindCreateCustomerAccount), "contact_id", "contact_id or email is required")
	}

	user, created, err := h.customers.EnsureAccount(ctx, service.EnsureAccountInput{
		ContactID:        contactID,
		Email:            in.String("email"),
		Name:             in.String("name"),
		Phone:            in.String("phone"),
		SendWelcomeEmail: in.Bool("send_welcome_email", true),
	})
	if err != nil {
		return nil, err
	}

	msg := "customer account already existed"
	if created {
		msg = "customer account created"
	}
	return &Result{
		Kind:    KindCreateCustomerAccount,
		Success: true,
		Message: msg,
		Data:    user,
		Exports: map[string]interface{}{
			"customer_id":      user.ID,
			"customer_user_id": user.ID,
			"username":         user.Username,
		},
	}, nil
}

// CreateProject opens a customer project owned by a portal account
type CreateProject struct {
	projects service.ProjectService
}

// NewCreateProject creates the create_project handler
func NewCreateProject(projects service.ProjectService) *CreateProject {
	return &CreateProject{projects: projects}
}

func (h *CreateProject) Kind() Kind { return KindCreateProject }

func (h *CreateProject) Describe() Descriptor {
	return Descriptor{
		Kind:        KindCreateProject,
		Label:       "Create Project",
		Description: "Create a customer project visible in the portal",
		Fields: []Field{
			{Name: "customer_id", Type: "number", Required: true, Description: "Usually exported by create_customer_account"},
			{Name: "contact_id", Type: "number"},
			{Name: "title", Type: "string", Required: true},
			{Name: "description", Type: "string"},
			{Name: "flooring_type", Type: "string"},
			{Name: "square_footage", Type: "number"},
			{Name: "estimated_cost", Type: "number"},
			{Name: "notify_customer", Type: "boolean", Description: "Defaults to true"},
		},
	}
}

func (h *CreateProject) Execute(ctx context.Context, in Input) (*Result, error) {
	customerID, ok := in.Int64("customer_id")
	if !ok {
		return nil, apperr.NewActionInputError(string(KindCreateProject), "customer_id", "customer_id is required")
	}
	title := service.RenderTemplate(in.String("project_title", "title"), in.Vars())
	if title == "" {
		return nil, apperr.NewActionInputError(string(KindCreateProject), "title", "project title is required")
	}

	project, err := h.projects.Create(ctx, service.CreateProjectInput{
		CustomerID:     customerID,
		ContactID:      in.Int64Ptr("contact_id"),
		Title:          title,
		Description:    in.String("project_description", "description"),
		FlooringType:   in.String("flooring_type"),
		SquareFootage:  in.NullDecimal("square_footage"),
		EstimatedCost:  in.NullDecimal("estimated_cost"),
		StartDate:      in.Time("start_date"),
		NotifyCustomer: in.Bool("notify_customer", true),
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Kind:    KindCreateProject,
		Success: true,
		Data:    project,
		Exports: map[string]interface{}{"project_id": project.ID},
	}, nil
}

// ConvertToContract turns an approved estimate into a draft contract and
// optionally sends it
type ConvertToContract struct {
	contracts service.ContractService
}

// NewConvertToContract creates the convert_to_contract handler
func NewConvertToContract(contracts service.ContractService) *ConvertToContract {
	return &ConvertToContract{contracts: contracts}
}

func (h *ConvertToContract) Kind() Kind { return KindConvertToContract }

func (h *ConvertToContract) Describe() Descriptor {
	return Descriptor{
		Kind:        KindConvertToContract,
		Label:       "Convert to Contract",
		Description: "Convert an approved estimate into a contract",
		Fields: []Field{
			{Name: "estimate_id", Type: "number", Required: true},
			{Name: "send_to_customer", Type: "boolean", Description: "Send the contract right away"},
		},
	}
}

func (h *ConvertToContract) Execute(ctx context.Context, in Input) (*Result, error) {
	estimateID, ok := in.Int64("estimate_id")
	if !ok {
		return nil, apperr.NewActionInputError(string(KindConvertToContract), "estimate_id", "estimate_id is required")
	}

	contract, err := h.contracts.CreateFromEstimate(ctx, estimateID)
	if err != nil {
		return nil, err
	}
	if in.Bool("send_to_customer", false) {
		if contract, err = h.contracts.Send(ctx, contract.ID); err != nil {
			return nil, err
		}
	}

	return &Result{
		Kind:    KindConvertToContract,
		Success: true,
		Data:    contract,
		Exports: map[string]interface{}{
			"contract_id":     contract.ID,
			"contract_number": contract.ContractNumber,
		},
	}, nil
}

// CreateInvoice bills a contract installment, or an ad-hoc amount when no
// installment is selected
type CreateInvoice struct {
	invoices  service.InvoiceService
	contracts service.ContractService
	now       func() time.Time
}

// NewCreateInvoice creates the create_invoice handler
func NewCreateInvoice(invoices service.InvoiceService, contracts service.ContractService) *CreateInvoice {
	return &CreateInvoice{invoices: invoices, contracts: contracts, now: time.Now}
}

func (h *CreateInvoice) Kind() Kind { return KindCreateInvoice }

func (h *CreateInvoice) Describe() Descriptor {
	return Descriptor{
		Kind:        KindCreateInvoice,
		Label:       "Create Invoice",
		Description: "Invoice a contract installment or an ad-hoc amount",
		Fields: []Field{
			{Name: "contract_id", Type: "number", Description: "Required when billing an installment"},
			{Name: "schedule_item_id", Type: "string", Description: "Installment to bill"},
			{Name: "installment", Type: "string", Description: "next, deposit or final; alternative to schedule_item_id"},
			{Name: "title", Type: "string", Description: "Required for ad-hoc invoices"},
			{Name: "amount", Type: "number", Description: "Required for ad-hoc invoices"},
			{Name: "due_in_days", Type: "number"},
			{Name: "send_to_customer", Type: "boolean"},
		},
	}
}

func (h *CreateInvoice) Execute(ctx context.Context, in Input) (*Result, error) {
	var (
		inv *entity.Invoice
		err error
	)
	if in.Has("schedule_item_id") || in.Has("installment") {
		inv, err = h.billInstallment(ctx, in)
	} else {
		inv, err = h.billAmount(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	if in.Bool("send_to_customer", false) {
		if inv, err = h.invoices.Send(ctx, inv.ID); err != nil {
			return nil, err
		}
	}

	return &Result{
		Kind:    KindCreateInvoice,
		Success: true,
		Data:    inv,
		Exports: map[string]interface{}{
			"invoice_id":     inv.ID,
			"invoice_number": inv.InvoiceNumber,
		},
	}, nil
}

func (h *CreateInvoice) billInstallment(ctx context.Context, in Input) (*entity.Invoice, error) {
	contractID, ok := in.Int64("contract_id")
	if !ok {
		return nil, apperr.NewActionInputError(string(KindCreateInvoice), "contract_id", "contract_id is required to bill an installment")
	}

	itemID := in.String("schedule_item_id")
	if itemID == "" {
		contract, err := h.contracts.Get(ctx, contractID)
		if err != nil {
			return nil, err
		}
		itemID = selectInstallment(contract, in.String("installment"))
		if itemID == "" {
			return nil, apperr.NewActionInputError(string(KindCreateInvoice), "installment", "no matching installment left to bill")
		}
	}
	return h.invoices.CreateFromContract(ctx, contractID, itemID)
}

func (h *CreateInvoice) billAmount(ctx context.Context, in Input) (*entity.Invoice, error) {
	title := service.RenderTemplate(in.String("invoice_title", "title"), in.Vars())
	amount, ok := in.Decimal("amount")
	if title == "" || !ok {
		return nil, apperr.NewActionInputError(string(KindCreateInvoice), "amount", "title and amount are required for an ad-hoc invoice")
	}

	var due *time.Time
	if days := in.Int("due_in_days", 0); days > 0 {
		d := h.now().AddDate(0, 0, days)
		due = &d
	}
	return h.invoices.Create(ctx, service.CreateInvoiceInput{
		ContactID:      in.Int64Ptr("contact_id"),
		CustomerUserID: in.Int64Ptr("customer_id"),
		ProjectID:      in.Int64Ptr("project_id"),
		Title:          title,
		Description:    in.String("invoice_description"),
		Total:          amount,
		DueDate:        due,
	})
}

// selectInstallment picks a still-scheduled installment: the first one for
// "next", otherwise the first or last by position
func selectInstallment(c *entity.Contract, which string) string {
	schedule := c.PaymentSchedule
	if len(schedule) == 0 {
		return ""
	}
	var item entity.PaymentScheduleItem
	switch which {
	case "deposit":
		item = schedule[0]
	case "final":
		item = schedule[len(schedule)-1]
	case "next", "":
		for _, it := range schedule {
			if it.Status == entity.ScheduleItemStatusScheduled {
				return it.ID
			}
		}
		return ""
	default:
		return ""
	}
	if item.Status != entity.ScheduleItemStatusScheduled {
		return ""
	}
	return item.ID
}
