package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldYear      = "year"
	FieldMonth     = "month"
	FieldPeriod    = "period"
	FieldFile      = "file"
	FieldSheet     = "sheet"
	FieldRow       = "row"
	FieldAttempt   = "attempt"
	FieldLabel     = "label"
	FieldAmount    = "amount"
	FieldCategory  = "category"
	FieldDirection = "direction"
	FieldTransfer  = "transfer"
	FieldAccount   = "account"
	FieldKind      = "kind"
	FieldEntryID   = "entry_id"
	FieldMirrorRef = "mirror_ref"
	FieldDate      = "date"
	FieldErrorType = "error_type"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentLedger   = "ledger"
	ComponentAccounts = "accounts"
	ComponentSettings = "settings"
	ComponentWorker   = "worker"
	ComponentXLSX     = "xlsx"
	ComponentBackend  = "backend"
	ComponentMirror   = "mirror"
)

// Operations defines standard operation names
const (
	OpAppend   = "append"
	OpRead     = "read"
	OpDerive   = "derive"
	OpSave     = "save"
	OpSync     = "sync"
	OpValidate = "validate"
	OpParse    = "parse"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeLock          = "lock_error"
	ErrorTypeStorage       = "storage_error"
	ErrorTypeInternal      = "internal_error"
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

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category, one of the ErrorType constants
func (f LogFields) WithErrorType(errType string) LogFields {
	f[FieldErrorType] = errType
	return f
}

// WithAccount adds account name and kind fields
func (f LogFields) WithAccount(name, kind string) LogFields {
	f[FieldAccount] = name
	if kind != "" {
		f[FieldKind] = kind
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds year, month and sheet name fields
func (f LogFields) WithPeriod(year, month int, sheet string) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	f[FieldSheet] = sheet
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(label, amount, category, direction, transfer string) LogFields {
	f[FieldLabel] = label
	f[FieldAmount] = amount
	f[FieldCategory] = category
	f[FieldDirection] = direction
	f[FieldTransfer] = transfer
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
