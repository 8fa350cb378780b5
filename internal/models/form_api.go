package models

// UpdateFieldRequest sets one form field
type UpdateFieldRequest struct {
	Field string `json:"field" binding:"required,oneof=name phone postcode messageType"`
	Value string `json:"value" binding:"max=200"`
}

// UpdatePhoneRequest carries the raw value of the phone input
type UpdatePhoneRequest struct {
	Phone string `json:"phone" binding:"max=40"`
}

// SelectAddressRequest picks one of the offered address candidates
type SelectAddressRequest struct {
	Slug string `json:"slug" binding:"required,max=200"`
}

// SubmitFormRequest finalises the signup
type SubmitFormRequest struct {
	RecaptchaToken string `json:"recaptchaToken"`
}

// VerifyButtonView describes the postcode verify trigger
type VerifyButtonView struct {
	Rendered bool   `json:"rendered"`
	Disabled bool   `json:"disabled"`
	Label    string `json:"label"`
}

// FormView is the render-ready state of one signup form
type FormView struct {
	Phase                 string             `json:"phase"`
	Form                  FormData           `json:"form"`
	VerifyButton          VerifyButtonView   `json:"verifyButton"`
	PostcodeInputDisabled bool               `json:"postcodeInputDisabled"`
	CancelRendered        bool               `json:"cancelRendered"`
	Candidates            []AddressCandidate `json:"candidates"`
	SelectedAddress       *AddressCandidate  `json:"selectedAddress,omitempty"`
	NotFound              bool               `json:"notFound"`
	Message               string             `json:"message,omitempty"`
	Error                 string             `json:"error,omitempty"`
	CanSubmit             bool               `json:"canSubmit"`
	Submitted             bool               `json:"submitted"`
}

// FieldError names one field that blocks an action
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormResponse wraps every form endpoint's reply
type FormResponse struct {
	Form    FormView     `json:"form"`
	Error   string       `json:"error,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}
