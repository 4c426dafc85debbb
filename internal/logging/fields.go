package logging

// Shared structured-log field names.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldCaptureID = "capture_id"
	FieldQueueItem = "queue_item_id"
)
