package models

import (
	"strings"
	"time"
)

// Record field names shared by the matcher, the connectors and discrepancy reports.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldVendorName    = "vendor_name"
	FieldCustomerName  = "customer_name"
	FieldInvoiceDate   = "invoice_date"
	FieldTotalAmount   = "total_amount"
	FieldFacilityName  = "facility_name"
	FieldPONumber      = "po_number"
)

// InvoiceRecord is an invoice extracted from a vendor statement that needs verification.
type InvoiceRecord struct {
	InvoiceNumber string    `json:"invoice_number"`
	VendorName    string    `json:"vendor_name"`
	CustomerName  string    `json:"customer_name"`
	InvoiceDate   time.Time `json:"invoice_date"`

	// TotalAmount is nil when the statement row carried no parseable amount.
	TotalAmount *float64 `json:"total_amount,omitempty"`

	// Optional fields
	FacilityName string `json:"facility_name,omitempty"`
	PONumber     string `json:"po_number,omitempty"`
}

// CandidateRecord is a row returned by the system of record. Read-only evidence.
type CandidateRecord struct {
	SourceID      string    `json:"source_id"` // Opaque identifier assigned by the source
	InvoiceNumber string    `json:"invoice_number"`
	VendorName    string    `json:"vendor_name"`
	CustomerName  string    `json:"customer_name"`
	InvoiceDate   time.Time `json:"invoice_date"`
	TotalAmount   *float64  `json:"total_amount,omitempty"`
	FacilityName  string    `json:"facility_name,omitempty"`
	PONumber      string    `json:"po_number,omitempty"`
}

// Amount returns a pointer to v, for building records with a known total.
func Amount(v float64) *float64 {
	return &v
}

// Key returns a human-readable identifier for logging.
func (r InvoiceRecord) Key() string {
	if strings.TrimSpace(r.InvoiceNumber) != "" {
		return r.InvoiceNumber
	}
	return r.VendorName + "@" + r.InvoiceDate.Format("2006-01-02")
}

// AsCandidate converts the invoice into candidate shape so both sides can be
// compared field by field.
func (r InvoiceRecord) AsCandidate(sourceID string) CandidateRecord {
	return CandidateRecord{
		SourceID:      sourceID,
		InvoiceNumber: r.InvoiceNumber,
		VendorName:    r.VendorName,
		CustomerName:  r.CustomerName,
		InvoiceDate:   r.InvoiceDate,
		TotalAmount:   r.TotalAmount,
		FacilityName:  r.FacilityName,
		PONumber:      r.PONumber,
	}
}

// SearchCriteria describes the query sent to a candidate source.
type SearchCriteria struct {
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	VendorName    string    `json:"vendor_name,omitempty"`
	DateFrom      time.Time `json:"date_from,omitempty"`
	DateTo        time.Time `json:"date_to,omitempty"`
	Limit         int       `json:"limit,omitempty"`
}

// Fields returns the record fields this criteria actually queries, in a stable order.
func (c SearchCriteria) Fields() []string {
	var fields []string
	if strings.TrimSpace(c.InvoiceNumber) != "" {
		fields = append(fields, FieldInvoiceNumber)
	}
	if strings.TrimSpace(c.VendorName) != "" {
		fields = append(fields, FieldVendorName)
	}
	if !c.DateFrom.IsZero() || !c.DateTo.IsZero() {
		fields = append(fields, FieldInvoiceDate)
	}
	return fields
}

// InDateWindow reports whether t falls within the criteria's date window.
// A zero window accepts every date.
func (c SearchCriteria) InDateWindow(t time.Time) bool {
	if !c.DateFrom.IsZero() && t.Before(c.DateFrom) {
		return false
	}
	if !c.DateTo.IsZero() && t.After(c.DateTo) {
		return false
	}
	return true
}
