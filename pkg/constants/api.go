package constants

// Context keys shared between middleware and handlers
const (
	ContextKeyUser = "user"
)

// HTTP headers
const (
	HeaderAuthorization = "Authorization"
)

// Standard response field names
const (
	ResponseError = "error"
	FieldMessage  = "message"
)
