package core

import (
	"errors"

	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// Error codes for gateway errors.
const (
	ErrCodeAccessDenied = "access_denied"
	ErrCodeNotFound     = "not_found"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeRoomRequired = "room_required"
	ErrCodeInternal     = "internal_error"
)

// MsgRoomRequired is sent when a map action is attempted without joining
// the owning room first. The wording is part of the client protocol.
const MsgRoomRequired = "먼저 방에 입장하세요."

// GatewayError wraps a code and human-readable message. Handlers convert
// every failure into one of these; it is the only error shape that reaches
// the originating connection.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// NewGatewayError builds a coded gateway error.
func NewGatewayError(code, msg string) *GatewayError {
	return &GatewayError{Code: code, Message: msg}
}

// AccessDenied builds an access_denied gateway error.
func AccessDenied(msg string) *GatewayError {
	return &GatewayError{Code: ErrCodeAccessDenied, Message: msg}
}

// NotFound builds a not_found gateway error.
func NotFound(msg string) *GatewayError {
	return &GatewayError{Code: ErrCodeNotFound, Message: msg}
}

// BadRequest builds a bad_request gateway error.
func BadRequest(msg string) *GatewayError {
	return &GatewayError{Code: ErrCodeBadRequest, Message: msg}
}

// asGatewayError normalizes an arbitrary handler failure into a GatewayError.
func asGatewayError(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, store.ErrNotFound) {
		return &GatewayError{Code: ErrCodeNotFound, Message: "not found"}
	}
	return &GatewayError{Code: ErrCodeInternal, Message: err.Error()}
}
