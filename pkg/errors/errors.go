package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for the HTTP surface. The string value is what
// the app receives in error.code.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code is rendered to the client.
type Metadata struct {
	HTTPStatus int
	// Retryable hints that the same request may succeed later.
	Retryable bool
	// PublicMessage is shown when the error's own message is withheld.
	PublicMessage string
	// EchoMessage lets the error's own message reach the client. Only codes
	// whose messages are written for shoppers set it.
	EchoMessage    bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "Datos inválidos", EchoMessage: true, DetailsAllowed: true},
	CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "Inicia sesión para continuar", EchoMessage: true},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "No tienes acceso a este recurso", EchoMessage: true},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "No encontrado", EchoMessage: true},
	CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "El recurso ya existe", EchoMessage: true},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "La operación no está permitida en este estado", EchoMessage: true, DetailsAllowed: true},
	CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, Retryable: true, PublicMessage: "Demasiadas solicitudes, intenta más tarde", EchoMessage: true},
	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "Ocurrió un error, intenta nuevamente"},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "Servicio no disponible, intenta más tarde", DetailsAllowed: true},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

// SignInRequired is returned by services called without a user in context.
func SignInRequired() *Error {
	return New(CodeUnauthorized, "authentication required")
}

// NotFound is the shopper-facing "<noun> no encontrado" error, keeping the
// store's lookup error as cause.
func NotFound(noun string, cause error) *Error {
	return Wrap(CodeNotFound, cause, noun+" no encontrado")
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// Public returns the message the client may see for e.
func (e *Error) Public() string {
	meta := MetadataFor(e.Code())
	if meta.EchoMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost typed error in err's chain has the given code.
// Typed errors wrapped inside another typed error are not consulted.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether the client may repeat the request that produced err.
// Untyped errors are treated as internal.
func Retryable(err error) bool {
	return MetadataFor(As(err).Code()).Retryable
}
