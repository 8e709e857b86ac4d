package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches internal/handler admin session keys)
	FieldSessionID = "session_id"

	// Service
	FieldService = "service"

	// Stream
	FieldStreamID    = "stream_id"
	FieldStreamPath  = "stream_path"
	FieldIngestEvent = "ingest_event"
	FieldClientID    = "client_id"
	FieldScope       = "scope"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
