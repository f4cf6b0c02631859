package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"

	FieldOwnerID  = "owner_id"
	FieldYear     = "year"
	FieldMonth    = "month"
	FieldSource   = "source"
	FieldFilename = "filename"
	FieldDigest   = "digest"
	FieldCategory = "category"
	FieldJobID    = "job_id"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)
