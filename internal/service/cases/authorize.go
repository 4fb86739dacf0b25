package cases

import (
	"fmt"

	"github.com/jwalitptl/lab-cases/internal/model"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
)

type action int

const (
	actionList action = iota
	actionListLabs
	actionCreate
	actionView
	actionEdit
	actionDelete
	actionManageAttachments
	actionTransition
)

func (a action) String() string {
	switch a {
	case actionList:
		return "list cases"
	case actionListLabs:
		return "list labs"
	case actionCreate:
		return "create cases"
	case actionView:
		return "view this case"
	case actionEdit:
		return "edit this case"
	case actionDelete:
		return "delete this case"
	case actionManageAttachments:
		return "manage attachments of this case"
	case actionTransition:
		return "change the status of this case"
	}
	return "do this"
}

// authorize is the only place role and ownership rules live. With a nil c
// only the role is checked; callers check again once the case is loaded.
// Transition targets are checked separately by checkTransition.
func authorize(p *model.Principal, act action, c *model.Case) error {
	if p == nil {
		return apperrors.Unauthorized(nil)
	}

	switch {
	case p.IsAdmin():
		switch act {
		case actionList, actionListLabs, actionCreate:
			return nil
		}
		if c == nil || c.CreatedBy == p.ID {
			return nil
		}
		return forbidden(p, act)

	case p.IsLab():
		switch act {
		case actionList, actionListLabs:
			return nil
		case actionView, actionTransition:
			if c == nil || labCanSee(c) {
				return nil
			}
		}
		return forbidden(p, act)
	}

	return forbidden(p, act)
}

func labCanSee(c *model.Case) bool {
	for _, s := range model.LabQueueStatuses {
		if c.Status == s {
			return true
		}
	}
	return false
}

func forbidden(p *model.Principal, act action) error {
	return apperrors.Forbidden(fmt.Sprintf("role %q may not %s", p.Role, act))
}

// transitions maps from -> to -> the role allowed to make the move.
var transitions = map[model.CaseStatus]map[model.CaseStatus]model.Role{
	model.CaseStatusDraft: {
		model.CaseStatusSent:     model.RoleAdmin,
		model.CaseStatusFinished: model.RoleAdmin,
	},
	model.CaseStatusSent: {
		model.CaseStatusDone:     model.RoleLab,
		model.CaseStatusFinished: model.RoleAdmin,
	},
	model.CaseStatusDone: {
		model.CaseStatusFinished: model.RoleAdmin,
	},
}

// checkTransition rejects moves outside the graph with InvalidTransition and
// moves made by the wrong role with Authorization.
func checkTransition(p *model.Principal, from, to model.CaseStatus) error {
	role, ok := transitions[from][to]
	if !ok {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	if p == nil || p.Role != role {
		return apperrors.Forbidden(fmt.Sprintf("only role %q may move a case from %s to %s", role, from, to))
	}
	return nil
}

// checkInitialStatus allows creation directly as draft or sent.
func checkInitialStatus(status model.CaseStatus) error {
	switch status {
	case model.CaseStatusDraft, model.CaseStatusSent:
		return nil
	}
	return apperrors.InvalidTransition("", string(status))
}
