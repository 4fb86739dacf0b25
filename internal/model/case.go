package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
)

type CaseStatus string

const (
	CaseStatusDraft    CaseStatus = "draft"
	CaseStatusSent     CaseStatus = "sent"
	CaseStatusDone     CaseStatus = "done"
	CaseStatusFinished CaseStatus = "finished"
)

// LabQueueStatuses is the status set visible to the lab role.
var LabQueueStatuses = []CaseStatus{CaseStatusSent, CaseStatusDone}

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusDraft, CaseStatusSent, CaseStatusDone, CaseStatusFinished:
		return true
	}
	return false
}

func ParseCaseStatus(s string) (CaseStatus, error) {
	status := CaseStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", apperrors.Validation(fmt.Sprintf("unknown case status %q", s), nil)
	}
	return status, nil
}

// Case is a patient/service request routed between the clinic and the lab.
// It is stored in lab_patients.
type Case struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Service      string     `json:"service" db:"service"`
	Shade        string     `json:"shade" db:"shade"`
	Notes        *string    `json:"notes" db:"notes"`
	DeliveryDate *Date      `json:"delivery_date" db:"delivery_date"`
	LabID        *string    `json:"lab_id" db:"lab_id"`
	Status       CaseStatus `json:"status" db:"status"`
	CreatedBy    string     `json:"created_by" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Clone returns a deep copy so callers can't mutate stored values.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Notes != nil {
		n := *c.Notes
		cp.Notes = &n
	}
	if c.DeliveryDate != nil {
		d := *c.DeliveryDate
		cp.DeliveryDate = &d
	}
	if c.LabID != nil {
		l := *c.LabID
		cp.LabID = &l
	}
	return &cp
}

// CaseFields are the user-editable attributes supplied at creation.
type CaseFields struct {
	Name         string  `json:"name" form:"name" validate:"required"`
	Service      string  `json:"service" form:"service" validate:"required"`
	Shade        string  `json:"shade" form:"shade"`
	Notes        *string `json:"notes" form:"notes"`
	DeliveryDate *Date   `json:"delivery_date" form:"-"`
	LabID        *string `json:"lab_id" form:"lab_id"`
}

var validate = validator.New()

// Normalize trims text fields and collapses empty optionals to nil.
func (f *CaseFields) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Service = strings.TrimSpace(f.Service)
	f.Shade = strings.TrimSpace(f.Shade)
	f.Notes = emptyToNil(f.Notes)
	f.LabID = emptyToNil(trimPtr(f.LabID))
}

// Validate normalizes the fields and checks the required ones.
func (f *CaseFields) Validate() error {
	f.Normalize()
	if err := validate.Struct(f); err != nil {
		return apperrors.Validation(describeValidation(err), err)
	}
	return nil
}

// NewCase builds a case record from validated fields.
func NewCase(id string, f CaseFields, ownerID string, status CaseStatus, now time.Time) *Case {
	return &Case{
		ID:           id,
		Name:         f.Name,
		Service:      f.Service,
		Shade:        f.Shade,
		Notes:        f.Notes,
		DeliveryDate: f.DeliveryDate,
		LabID:        f.LabID,
		Status:       status,
		CreatedBy:    ownerID,
		CreatedAt:    now,
	}
}

// CreateCaseRequest is the JSON body (or multipart form) for case creation.
type CreateCaseRequest struct {
	Name         string  `json:"name" form:"name" binding:"required"`
	Service      string  `json:"service" form:"service" binding:"required"`
	Shade        string  `json:"shade" form:"shade"`
	Notes        *string `json:"notes" form:"notes"`
	DeliveryDate string  `json:"delivery_date" form:"delivery_date"`
	LabID        *string `json:"lab_id" form:"lab_id"`
	Status       string  `json:"status" form:"status"`
}

// Fields converts the request into case fields and the initial status. An
// empty status means draft.
func (r CreateCaseRequest) Fields() (CaseFields, CaseStatus, error) {
	f := CaseFields{
		Name:    r.Name,
		Service: r.Service,
		Shade:   r.Shade,
		Notes:   r.Notes,
		LabID:   r.LabID,
	}
	if s := strings.TrimSpace(r.DeliveryDate); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return CaseFields{}, "", apperrors.Validation(err.Error(), err)
		}
		f.DeliveryDate = &d
	}

	status := CaseStatusDraft
	if strings.TrimSpace(r.Status) != "" {
		var err error
		if status, err = ParseCaseStatus(r.Status); err != nil {
			return CaseFields{}, "", err
		}
	}
	return f, status, nil
}

// CasePatch is a partial update. Nil means "leave unchanged"; for the optional
// fields an empty string (or a zero Date) clears the value.
type CasePatch struct {
	Name         *string     `json:"name"`
	Service      *string     `json:"service"`
	Shade        *string     `json:"shade"`
	Notes        *string     `json:"notes"`
	DeliveryDate *Date       `json:"delivery_date"`
	LabID        *string     `json:"lab_id"`
	Status       *CaseStatus `json:"status"`
}

// IsEmpty reports whether the patch changes nothing.
func (p CasePatch) IsEmpty() bool {
	return p.Name == nil && p.Service == nil && p.Shade == nil && p.Notes == nil &&
		p.DeliveryDate == nil && p.LabID == nil && p.Status == nil
}

// OnlyStatus reports whether the patch touches status and nothing else.
func (p CasePatch) OnlyStatus() bool {
	return p.Status != nil && p.Name == nil && p.Service == nil && p.Shade == nil &&
		p.Notes == nil && p.DeliveryDate == nil && p.LabID == nil
}

// Validate normalizes the patch and rejects blanked required fields.
func (p *CasePatch) Validate() error {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		if v == "" {
			return apperrors.Validation("name is required", nil)
		}
		p.Name = &v
	}
	if p.Service != nil {
		v := strings.TrimSpace(*p.Service)
		if v == "" {
			return apperrors.Validation("service is required", nil)
		}
		p.Service = &v
	}
	if p.Shade != nil {
		v := strings.TrimSpace(*p.Shade)
		p.Shade = &v
	}
	if p.LabID != nil {
		v := strings.TrimSpace(*p.LabID)
		p.LabID = &v
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown case status %q", *p.Status), nil)
	}
	return nil
}

// Apply writes the patch onto c. Callers validate first.
func (p CasePatch) Apply(c *Case) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Service != nil {
		c.Service = *p.Service
	}
	if p.Shade != nil {
		c.Shade = *p.Shade
	}
	if p.Notes != nil {
		c.Notes = emptyToNil(p.Notes)
	}
	if p.DeliveryDate != nil {
		if p.DeliveryDate.IsZero() {
			c.DeliveryDate = nil
		} else {
			d := *p.DeliveryDate
			c.DeliveryDate = &d
		}
	}
	if p.LabID != nil {
		c.LabID = emptyToNil(p.LabID)
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
}

// CaseFilter narrows a visible case list (status and free-text search).
type CaseFilter struct {
	Status CaseStatus
	Query  string
}

// Match reports whether c passes the filter.
func (f CaseFilter) Match(c *Case) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	notes := ""
	if c.Notes != nil {
		notes = *c.Notes
	}
	for _, field := range []string{c.Name, c.Service, c.Shade, notes} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Now is the timestamp used for created_at/uploaded_at. Postgres keeps
// microseconds, so both backends truncate to the same precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func describeValidation(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "invalid case fields"
	}
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, strings.ToLower(e.Field()))
	}
	return fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", "))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
