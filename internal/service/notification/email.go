package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwalitptl/lab-cases/internal/email"
	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/pkg/metrics"
)

// LabEmail mails the lab when it has an address on file.
type LabEmail struct {
	svc     email.Service
	metrics *metrics.Metrics
}

func NewLabEmail(svc email.Service, m *metrics.Metrics) *LabEmail {
	return &LabEmail{svc: svc, metrics: m}
}

func (n *LabEmail) CaseSent(ctx context.Context, c *model.Case, lab *model.Lab) error {
	to := lab.EmailOrEmpty()
	if to == "" {
		return nil
	}

	subject := fmt.Sprintf("New case: %s (%s)", c.Name, c.Service)
	err := n.svc.SendCustom(ctx, to, subject, renderCaseEmail(NewPayload(c, lab)))
	if n.metrics != nil {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		n.metrics.Notifications.WithLabelValues("email", status).Inc()
	}
	return err
}

func renderCaseEmail(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nA new case has been sent to you.\n\n", p.LabName)
	fmt.Fprintf(&b, "Patient: %s\n", p.PatientName)
	fmt.Fprintf(&b, "Service: %s\n", p.Service)
	if p.Shade != "" {
		fmt.Fprintf(&b, "Shade: %s\n", p.Shade)
	}
	if p.DeliveryDate != nil {
		fmt.Fprintf(&b, "Delivery date: %s\n", *p.DeliveryDate)
	}
	if p.Notes != nil {
		fmt.Fprintf(&b, "Notes: %s\n", *p.Notes)
	}
	fmt.Fprintf(&b, "\nCase id: %s\n", p.PatientID)
	return b.String()
}
