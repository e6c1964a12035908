// Package api defines the JSON envelope shared by the server and the client
// and the error taxonomy both sides use.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Count   *int            `json:"count,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Errors  []string        `json:"errors,omitempty"`
}

// Kind classifies a failed call.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindTransport  Kind = "transport"
	KindServer     Kind = "server"
	KindUnexpected Kind = "unexpected"
)

// Messages shown to users.
const (
	MsgCreated        = "تم التسجيل بنجاح"
	MsgInvalidInput   = "خطأ, يرجى إعادة ملئ البيانات بشكل صحيح"
	MsgDatabase       = "Database error occurred"
	MsgListFailed     = "Error fetching submissions"
	MsgNotFound       = "إستمارة التسجيل غير موجودة"
	MsgDownloadFailed = "خطأ في تحميل الإستمارة"
	MsgInternal       = "Something went wrong!"
	MsgNoResponse     = "No response from server. Please check your connection."
)

// Error is a failed API call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Details carries the per-field messages of a validation error or the
	// server's error string.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnexpected when err is not an
// *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnexpected
}
