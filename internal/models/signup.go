package models

// MessageType is the channel the election-day reminder is sent on
type MessageType string

const (
	MessageTypeWhatsApp MessageType = "WhatsApp"
	MessageTypeSms      MessageType = "Sms"
)

// Valid reports whether t is a supported reminder channel
func (t MessageType) Valid() bool {
	return t == MessageTypeWhatsApp || t == MessageTypeSms
}

// FormData is the signup payload, posted as-is to the poll API's /submit
type FormData struct {
	Name        string      `json:"name"`
	Phone       string      `json:"phone"`
	Postcode    string      `json:"postcode"`
	MessageType MessageType `json:"messageType"`
	AddressSlug string      `json:"addressSlug"`
}

// NewFormData returns the empty form a new session starts with
func NewFormData() FormData {
	return FormData{MessageType: MessageTypeWhatsApp}
}

// AddressCandidate is one polling-station address returned for a postcode
type AddressCandidate struct {
	Address  string `json:"address"`
	Postcode string `json:"postcode"`
	Slug     string `json:"slug"`
}

// PostcodeLookupResult is the poll API's /postcode response body
type PostcodeLookupResult struct {
	PollingStationFound bool               `json:"pollingStationFound"`
	PollingStations     []AddressCandidate `json:"pollingStations"`
}
