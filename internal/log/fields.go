package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldQuery        = "query"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldReferer      = "referer"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldBillID       = "bill_id"
	FieldCategory     = "category"
	FieldJobID        = "job_id"
	FieldSink         = "sink"
	FieldSinkRef      = "sink_ref"
	FieldUpstreamPath = "upstream_path"
	FieldUpstreamCode = "upstream_status"
	FieldErrorType    = "error_type"
)

// Components defines standard component names
const (
	ComponentHTTP     = "http"
	ComponentGateway  = "gateway"
	ComponentSession  = "session"
	ComponentExport   = "export"
	ComponentWorker   = "worker"
	ComponentTrace    = "trace"
	ComponentTemplate = "template"
)

// Operations defines standard operation names
const (
	OpFetch    = "fetch"
	OpUpload   = "upload"
	OpLogin    = "login"
	OpRegister = "register"
	OpExport   = "export"
	OpRender   = "render"
)

// Error types classify failures for alerting
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeUpstream   = "upstream_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithBill adds bill identification fields
func (f LogFields) WithBill(id, category string) LogFields {
	f[FieldBillID] = id
	if category != "" {
		f[FieldCategory] = category
	}
	return f
}

// WithJob adds export job fields
func (f LogFields) WithJob(jobID, sink string) LogFields {
	f[FieldJobID] = jobID
	if sink != "" {
		f[FieldSink] = sink
	}
	return f
}

// WithErrorType adds the error classification field
func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

// WithUpstream records which backend call failed and how
func (f LogFields) WithUpstream(path string, status int) LogFields {
	f[FieldUpstreamPath] = path
	f[FieldUpstreamCode] = status
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
