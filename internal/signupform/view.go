package signupform

import "github.com/pollreminder/reminder-api/internal/models"

// Verify button labels
const (
	LabelVerify   = "Verify postcode"
	LabelChecking = "Checking postcode"
	LabelVerified = "Postcode verified!"
)

// View derives the render-ready state of the form
func (c *Controller) View() models.FormView {
	view := models.FormView{
		Phase: c.phase.String(),
		Form:  c.form,
		VerifyButton: models.VerifyButtonView{
			Rendered: c.phase != PhaseAwaitingSelection && c.selected == nil,
			Disabled: c.phase == PhaseChecking || c.phase == PhaseVerified,
			Label:    verifyLabel(c.phase),
		},
		PostcodeInputDisabled: c.phase == PhaseChecking || c.phase == PhaseVerified || c.phase == PhaseAwaitingSelection,
		CancelRendered:        c.phase.canCancel(),
		Candidates:            append([]models.AddressCandidate{}, c.candidates...),
		NotFound:              c.phase == PhaseNotFound,
		Error:                 c.submitErr,
		Submitted:             c.submitted,
	}

	if c.selected != nil {
		selected := *c.selected
		view.SelectedAddress = &selected
	}

	switch c.phase {
	case PhaseNotFound:
		view.Message = NotFoundMessage
	case PhaseLookupFailed:
		view.Message = LookupFailedMessage
	}

	view.CanSubmit = !c.submitted && len(c.missingFields()) == 0
	return view
}

func verifyLabel(p Phase) string {
	switch p {
	case PhaseChecking:
		return LabelChecking
	case PhaseVerified:
		return LabelVerified
	default:
		return LabelVerify
	}
}
