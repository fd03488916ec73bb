package client

import "tether/internal/types"

type ThreadsResponse struct {
	Threads []types.ThreadSummary `json:"threads"`
}

type SendMessageRequest struct {
	Text           string              `json:"text,omitempty"`
	Attachments    []types.PreparedRef `json:"attachments,omitempty"`
	ClientActionID string              `json:"client_action_id,omitempty"`
}

type SendAck struct {
	Accepted bool   `json:"accepted"`
	TraceID  string `json:"trace_id,omitempty"`
}

type InterruptRequest struct {
	TurnID         string `json:"turn_id,omitempty"`
	ClientActionID string `json:"client_action_id,omitempty"`
}

type InterruptAck struct {
	Pending    bool `json:"pending"`
	Deduped    bool `json:"deduped,omitempty"`
	Retargeted bool `json:"retargeted,omitempty"`
}

type UploadAttachmentRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

type ClientConfig struct {
	SteerEnabled bool `json:"steer_enabled"`
}

type CreateThreadRequest struct {
	Cwd string `json:"cwd,omitempty"`
}
