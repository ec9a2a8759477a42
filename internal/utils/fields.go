package utils

// Canonical field names for structured logging.
const (
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldSessionID = "session_id"
	FieldRow       = "row"
	FieldIndex     = "index"
	FieldItemID    = "item_id"
	FieldClipKey   = "clip_key"
	FieldQuality   = "quality"
	FieldEndpoint  = "endpoint"
	FieldStatus    = "status"
)
