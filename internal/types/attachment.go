package types

// Attachment is a draft-side file payload. Preview generation stays outside
// the engine; only the name, mime type and raw bytes travel through it.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// PreparedRef identifies an attachment the server has accepted for a later
// send.
type PreparedRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}
