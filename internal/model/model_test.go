package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestCaseFieldsValidate(t *testing.T) {
	f := CaseFields{Name: "  Jane Smith ", Service: "Crown", Shade: " A2 ", Notes: strPtr(""), LabID: strPtr("  ")}
	require.NoError(t, f.Validate())
	assert.Equal(t, "Jane Smith", f.Name)
	assert.Equal(t, "A2", f.Shade)
	assert.Nil(t, f.Notes)
	assert.Nil(t, f.LabID)

	missing := CaseFields{Name: " ", Service: ""}
	err := missing.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "service")
}

func TestShadeIsOptional(t *testing.T) {
	f := CaseFields{Name: "Jane", Service: "Crown"}
	assert.NoError(t, f.Validate())
}

func TestCasePatchValidateAndApply(t *testing.T) {
	c := &Case{Name: "Jane", Service: "Crown", Notes: strPtr("old"), LabID: strPtr("lab-1"), Status: CaseStatusDraft}

	blank := CasePatch{Name: strPtr("   ")}
	assert.True(t, apperrors.HasCode(blank.Validate(), apperrors.ErrValidation))

	d := NewDate(2024, time.October, 15)
	p := CasePatch{Notes: strPtr(""), LabID: strPtr(""), DeliveryDate: &d, Shade: strPtr(" B1 ")}
	require.NoError(t, p.Validate())
	p.Apply(c)

	assert.Nil(t, c.Notes)
	assert.Nil(t, c.LabID)
	assert.Equal(t, "B1", c.Shade)
	require.NotNil(t, c.DeliveryDate)
	assert.Equal(t, "2024-10-15", c.DeliveryDate.String())

	reset := CasePatch{DeliveryDate: &Date{}}
	reset.Apply(c)
	assert.Nil(t, c.DeliveryDate)
}

func TestCasePatchRejectsUnknownStatus(t *testing.T) {
	bogus := CaseStatus("archived")
	p := CasePatch{Status: &bogus}
	assert.True(t, apperrors.HasCode(p.Validate(), apperrors.ErrValidation))
}

func TestParseCaseStatus(t *testing.T) {
	s, err := ParseCaseStatus(" Sent ")
	require.NoError(t, err)
	assert.Equal(t, CaseStatusSent, s)

	_, err = ParseCaseStatus("pending")
	assert.Error(t, err)
}

func TestCaseCloneIsDeep(t *testing.T) {
	d := NewDate(2024, time.January, 2)
	c := &Case{ID: "c1", Notes: strPtr("n"), DeliveryDate: &d, LabID: strPtr("l")}
	cp := c.Clone()
	*cp.Notes = "changed"
	*cp.LabID = "other"
	assert.Equal(t, "n", *c.Notes)
	assert.Equal(t, "l", *c.LabID)
}

func TestCaseFilterMatch(t *testing.T) {
	c := &Case{Name: "Jane Smith", Service: "Zirconia Crown", Shade: "A2", Notes: strPtr("high translucency"), Status: CaseStatusSent}

	assert.True(t, CaseFilter{}.Match(c))
	assert.True(t, CaseFilter{Query: "zirconia"}.Match(c))
	assert.True(t, CaseFilter{Query: "TRANSLUCENCY"}.Match(c))
	assert.False(t, CaseFilter{Query: "veneer"}.Match(c))
	assert.False(t, CaseFilter{Status: CaseStatusDone}.Match(c))
	assert.True(t, CaseFilter{Status: CaseStatusSent, Query: "a2"}.Match(c))
}

func TestDateJSONAndSQL(t *testing.T) {
	d := NewDate(2024, time.March, 9)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", v)

	var scanned Date
	require.NoError(t, scanned.Scan(time.Date(2024, time.March, 9, 0, 0, 0, 0, time.FixedZone("x", 3600))))
	assert.Equal(t, d, scanned)
	require.NoError(t, scanned.Scan([]byte("2024-03-09T00:00:00Z")))
	assert.Equal(t, d, scanned)

	_, err = ParseDate("09/03/2024")
	assert.Error(t, err)
}

func TestAcceptedExtensions(t *testing.T) {
	assert.True(t, IsAcceptedExtension("scan.STL"))
	assert.True(t, IsAcceptedExtension("xray.png"))
	assert.False(t, IsAcceptedExtension("notes.docx"))
}

func TestPrincipalRoles(t *testing.T) {
	assert.True(t, (&Principal{Role: RoleAdmin}).IsAdmin())
	assert.True(t, (&Principal{Role: RoleLab}).IsLab())
	other := &Principal{Role: "dentist"}
	assert.False(t, other.IsAdmin())
	assert.False(t, other.IsLab())
	var none *Principal
	assert.False(t, none.IsAdmin())
}

func TestCreateCaseRequestFields(t *testing.T) {
	f, status, err := CreateCaseRequest{Name: "Jane", Service: "Crown", DeliveryDate: "2024-11-05"}.Fields()
	require.NoError(t, err)
	assert.Equal(t, CaseStatusDraft, status)
	require.NotNil(t, f.DeliveryDate)
	assert.Equal(t, "2024-11-05", f.DeliveryDate.String())

	_, status, err = CreateCaseRequest{Name: "Jane", Service: "Crown", Status: "Sent"}.Fields()
	require.NoError(t, err)
	assert.Equal(t, CaseStatusSent, status)

	_, _, err = CreateCaseRequest{Name: "Jane", Service: "Crown", DeliveryDate: "05/11/2024"}.Fields()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))

	_, _, err = CreateCaseRequest{Name: "Jane", Service: "Crown", Status: "archived"}.Fields()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrValidation))
}
