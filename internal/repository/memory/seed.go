package memory

import (
	"time"

	"github.com/jwalitptl/lab-cases/internal/model"
)

// Demo identities referenced by the seed data; the identity provider's mock
// directory uses the same ids.
const (
	DemoAdminID = "user-mineers"
	DemoLabID   = "user-lab"
)

type seedData struct {
	cases       []*model.Case
	attachments []*model.Attachment
	labs        []*model.Lab
}

func demoData() seedData {
	str := func(s string) *string { return &s }
	ts := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t.UTC()
	}

	return seedData{
		labs: []*model.Lab{
			{ID: "lab-001", Name: "Aurora Dental Lab", Email: str("orders@aurora-lab.example.com"), Phone: str("+1 555 0101")},
			{ID: "lab-002", Name: "Northside Ceramics", Email: str("cases@northside.example.com")},
		},
		cases: []*model.Case{
			{
				ID: "pat-003", Name: "Sara Lee", Service: "Implant Crown", Shade: "A1",
				Notes: str("Check occlusion on delivery."), Status: model.CaseStatusDone,
				CreatedBy: DemoAdminID, CreatedAt: ts("2024-10-05T09:15:00Z"),
			},
			{
				ID: "pat-002", Name: "Miguel Alvarez", Service: "E-max Veneers", Shade: "BL3",
				Notes: str("8 veneers. Provide mock-up photos."), Status: model.CaseStatusDraft,
				CreatedBy: DemoAdminID, CreatedAt: ts("2024-10-02T14:30:00Z"),
			},
			{
				ID: "pat-001", Name: "Jane Smith", Service: "Zirconia Crown", Shade: "A2",
				Notes: str("Deliver before 15th. Requires high translucency."), Status: model.CaseStatusSent,
				LabID: str("lab-001"), CreatedBy: DemoAdminID, CreatedAt: ts("2024-09-28T10:00:00Z"),
			},
		},
		attachments: []*model.Attachment{
			{ID: "file-003", CaseID: "pat-003", FileURL: "https://placehold.co/600x400?text=PHOTO", FileName: "sara-portrait.jpg", UploadedAt: ts("2024-10-05T09:30:00Z")},
			{ID: "file-002", CaseID: "pat-002", FileURL: "https://placehold.co/600x400?text=SMILE+SCAN", FileName: "miguel-scan.stl", UploadedAt: ts("2024-10-02T15:00:00Z")},
			{ID: "file-001", CaseID: "pat-001", FileURL: "https://placehold.co/600x400?text=XRAY+A", FileName: "jane-smith-xray.png", UploadedAt: ts("2024-09-28T11:00:00Z")},
		},
	}
}
