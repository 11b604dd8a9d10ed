package log

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldRoute         = "route"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldSessionIndex  = "session_index"
	FieldSessionID     = "session_id"
	FieldSessionDate   = "session_date"
	FieldSessionCount  = "session_count"
	FieldField         = "field"
	FieldReason        = "reason"
	FieldVersion       = "snapshot_version"
	FieldDataFile      = "data_file"
	FieldUsername      = "username"
	FieldErrorType     = "error_type"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentCache     = "cache"
	ComponentNormalize = "normalize"
	ComponentSession   = "session"
	ComponentDashboard = "dashboard"
	ComponentAuth      = "auth"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentCLI       = "cli"
)

// Operation names.
const (
	OpAppend     = "append"
	OpDelete     = "delete"
	OpList       = "list"
	OpReload     = "reload"
	OpNormalize  = "normalize"
	OpAggregate  = "aggregate"
	OpPrecompute = "precompute"
	OpExport     = "export"
	OpRepair     = "repair"
	OpLogin      = "login"
	OpRegister   = "register"
	OpPublish    = "publish"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// ErrorTypes maps failures onto the categories dashboards group by
const (
	ErrorTypeMalformedValue   = "malformed_value"
	ErrorTypeMalformedRecord  = "malformed_record"
	ErrorTypeStoreUnavailable = "store_unavailable"
	ErrorTypeNotFound         = "index_out_of_range"
	ErrorTypeConflict         = "write_conflict"
	ErrorTypeTimeout          = "timeout"
	ErrorTypeAuth             = "auth_error"
	ErrorTypeConfiguration    = "configuration_error"
	ErrorTypeNetwork          = "network_error"
	ErrorTypeInternal         = "internal_error"
)

// LogFields collects attributes for one log line.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSession sets the index always and the id and date when known.
func (f LogFields) WithSession(index int, id, date string) LogFields {
	f[FieldSessionIndex] = index
	if id != "" {
		f[FieldSessionID] = id
	}
	if date != "" {
		f[FieldSessionDate] = date
	}
	return f
}

// WithHTTPRequest omits the user agent and referer when empty.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	if referer != "" {
		f[FieldReferer] = referer
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// WithRoute sets the matched mux pattern, if any.
func (f LogFields) WithRoute(route string) LogFields {
	if route != "" {
		f[FieldRoute] = route
	}
	return f
}

// ToSlice flattens the fields into slog's alternating key/value form.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
