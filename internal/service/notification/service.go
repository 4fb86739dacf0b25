package notification

import (
	"context"
	"errors"

	"github.com/jwalitptl/lab-cases/internal/model"
)

// UnknownLabName is reported when the case's lab is not in the reference list.
const UnknownLabName = "Unknown Lab"

// Notifier tells a lab that a case was sent to it. lab may be nil when the
// case's lab_id does not resolve.
type Notifier interface {
	CaseSent(ctx context.Context, c *model.Case, lab *model.Lab) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) CaseSent(ctx context.Context, c *model.Case, lab *model.Lab) error {
	var errs []error
	for _, n := range m {
		if err := n.CaseSent(ctx, c, lab); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nop struct{}

func (nop) CaseSent(context.Context, *model.Case, *model.Lab) error { return nil }

func Nop() Notifier { return nop{} }

// Payload is the webhook body announcing a sent case.
type Payload struct {
	PatientID    string  `json:"patient_id"`
	PatientName  string  `json:"patient_name"`
	Service      string  `json:"service"`
	Shade        string  `json:"shade"`
	Notes        *string `json:"notes"`
	DeliveryDate *string `json:"delivery_date"`
	LabID        string  `json:"lab_id"`
	LabName      string  `json:"lab_name"`
	LabEmail     string  `json:"lab_email"`
	LabPhone     string  `json:"lab_phone"`
	CreatedAt    string  `json:"created_at"`
}

func NewPayload(c *model.Case, lab *model.Lab) Payload {
	p := Payload{
		PatientID:   c.ID,
		PatientName: c.Name,
		Service:     c.Service,
		Shade:       c.Shade,
		Notes:       c.Notes,
		LabName:     UnknownLabName,
		LabEmail:    lab.EmailOrEmpty(),
		LabPhone:    lab.PhoneOrEmpty(),
		CreatedAt:   c.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if c.LabID != nil {
		p.LabID = *c.LabID
	}
	if lab != nil && lab.Name != "" {
		p.LabName = lab.Name
	}
	if c.DeliveryDate != nil && !c.DeliveryDate.IsZero() {
		d := c.DeliveryDate.String()
		p.DeliveryDate = &d
	}
	return p
}
