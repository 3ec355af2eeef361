package entities

// Device is one registered pair of glasses
type Device struct {
	ID           string  `json:"id"`
	SerialNumber string  `json:"serial_number"`
	Model        string  `json:"model"`
	OwnerID      *string `json:"owner_id,omitempty"`
}
