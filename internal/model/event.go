package model

import "time"

// CasesUpdatedChannel is the broadcast channel listeners watch to refresh
// their case lists.
const CasesUpdatedChannel = "cases-updated"

type CaseEventType string

const (
	CaseEventCreated            CaseEventType = "case_created"
	CaseEventUpdated            CaseEventType = "case_updated"
	CaseEventDeleted            CaseEventType = "case_deleted"
	CaseEventAttachmentsChanged CaseEventType = "attachments_changed"
)

// CaseEvent is the payload of a cases-updated signal. It carries no case
// data; listeners re-fetch from the persistence provider.
type CaseEvent struct {
	Type   CaseEventType `json:"type"`
	CaseID string        `json:"case_id"`
	At     time.Time     `json:"at"`
}
