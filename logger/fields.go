package logger

// Standard field names, used instead of raw strings so grep/log-query stays
// consistent across the codebase.
const (
	FieldPath       = "path"
	FieldResource   = "resource_name"
	FieldRequestID  = "request_id"
	FieldIdentifier = "identifier"
	FieldDurationMS = "duration_ms"
	FieldSize       = "size_bytes"
	FieldCount      = "count"
	FieldError      = "error"
	FieldSymbol     = "symbol"
	FieldWorkerID   = "worker_id"
	FieldStatus     = "status"
)
