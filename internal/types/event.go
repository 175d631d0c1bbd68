package types

// BillingEventName identifies a domain event emitted after a billing write commits
type BillingEventName string

const (
	EventInvoiceCreated   BillingEventName = "invoice.created"
	EventInvoiceUpdated   BillingEventName = "invoice.updated"
	EventInvoiceSent      BillingEventName = "invoice.sent"
	EventInvoicePaid      BillingEventName = "invoice.paid"
	EventInvoiceOverdue   BillingEventName = "invoice.overdue"
	EventInvoiceCancelled BillingEventName = "invoice.cancelled"
	EventServiceBilled    BillingEventName = "service.billed"
)
