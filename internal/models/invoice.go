package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvoiceStatus of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// PaymentMethod used to settle an invoice.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// InvoiceLine is one billed line.
type InvoiceLine struct {
	Kind        string  `bson:"kind" json:"kind"` // "labour" or "parts"
	Description string  `bson:"description" json:"description"`
	Quantity    float64 `bson:"quantity" json:"quantity"`
	UnitPrice   float64 `bson:"unit_price" json:"unitPrice"`
	Amount      float64 `bson:"amount" json:"amount"`
	Reference   string  `bson:"reference,omitempty" json:"reference,omitempty"`
}

// Invoice bills a completed job.
type Invoice struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	InvoiceNumber string             `bson:"invoice_number" json:"invoiceNumber"`
	Job           primitive.ObjectID `bson:"job" json:"job"`
	JobID         string             `bson:"job_id" json:"jobId"`
	Booking       primitive.ObjectID `bson:"booking" json:"booking"`
	Customer      primitive.ObjectID `bson:"customer,omitempty" json:"customer,omitempty"`
	Lines         []InvoiceLine      `bson:"lines" json:"lines"`
	Subtotal      float64            `bson:"subtotal" json:"subtotal"`
	TaxRate       float64            `bson:"tax_rate" json:"taxRate"`
	Tax           float64            `bson:"tax" json:"tax"`
	Total         float64            `bson:"total" json:"total"`
	Status        InvoiceStatus      `bson:"status" json:"status"`
	PaymentMethod PaymentMethod      `bson:"payment_method,omitempty" json:"paymentMethod,omitempty"`
	PaidAt        *time.Time         `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy     primitive.ObjectID `bson:"created_by" json:"createdBy"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// IsValidPaymentMethod checks if a payment method is valid
func IsValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer:
		return true
	default:
		return false
	}
}
