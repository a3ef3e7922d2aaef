package httpdto

// Response is the envelope of every JSON body the API writes. Error and Code
// are set only when Success is false.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

// NewEmptyResponse acknowledges a command that has nothing to return, such
// as leaving a group or deleting a message.
func NewEmptyResponse() Response[any] {
	return Response[any]{Success: true}
}

// NewErrorResponse builds a failure body. code is one of the machine codes
// from services.ErrorCode, e.g. NOT_FOUND or RATE_LIMITED.
func NewErrorResponse(message, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   message,
		Code:    code,
	}
}
