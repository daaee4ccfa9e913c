package middlewares

// Gin contexts key by string.
const (
	CtxRequestID = "request_id"
)
