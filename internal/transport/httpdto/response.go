package httpdto

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// Error codes surfaced by the API.
const (
	CodeMissingSignature      = "MISSING_SIGNATURE"
	CodeInvalidSignature      = "INVALID_SIGNATURE"
	CodeMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeConflict              = "CONFLICT"
	CodeJobNotInPending       = "JOB_NOT_IN_PENDING"
	CodeNotCancellable        = "NOT_CANCELLABLE"
	CodeInProgress            = "IN_PROGRESS"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "INSUFFICIENT_PERMISSIONS"
	CodeProcessingError       = "PROCESSING_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeRouteTimeout          = "ROUTE_TIMEOUT"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
)
