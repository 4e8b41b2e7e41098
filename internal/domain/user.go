package domain

// User is the slice of the user directory this core reads: the default
// currency new transactions are stored in, the language extraction notes
// should be written in, and the user-defined tag/location vocabularies the
// extraction prompt offers the model as a match-list.
type User struct {
	ID              string   `json:"id"`
	DefaultCurrency string   `json:"default_currency"`
	Language        string   `json:"language"`
	Tags            []string `json:"tags"`
	Locations       []string `json:"locations"`
}
