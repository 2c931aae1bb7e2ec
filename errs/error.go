package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの種類 (HTTPステータスの決定に使う)
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindUpstream
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error represents the specific error returned to user
type Error struct {
	Kind           Kind
	Code           int32
	HttpStatusCode int
	Message        string
	Err            error
}

// Error returns the error message
func (err *Error) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %s", err.Message, err.Err.Error())
	}
	return err.Message
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is は種類とコードが一致すれば同じエラーとみなす
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == err.Kind && t.Code == err.Code
}

// New returns a new error instance
func New(kind Kind, code int32, httpStatusCode int, message string) *Error {
	return &Error{
		Kind:           kind,
		Code:           code,
		HttpStatusCode: httpStatusCode,
		Message:        message,
	}
}

func NewValidationError(code int32, message string) *Error {
	return New(KindValidation, code, http.StatusBadRequest, message)
}

func NewNotFoundError(code int32, message string) *Error {
	return New(KindNotFound, code, http.StatusNotFound, message)
}

func NewUpstreamError(code int32, message string) *Error {
	return New(KindUpstream, code, http.StatusBadGateway, message)
}

func NewPersistenceError(code int32, message string) *Error {
	return New(KindPersistence, code, http.StatusInternalServerError, message)
}

// Wrap は定義済みエラーに原因を付けたコピーを返す
func Wrap(base *Error, cause error) *Error {
	return &Error{
		Kind:           base.Kind,
		Code:           base.Code,
		HttpStatusCode: base.HttpStatusCode,
		Message:        base.Message,
		Err:            cause,
	}
}

// WithMessage は定義済みエラーのメッセージだけ差し替える
func WithMessage(base *Error, message string) *Error {
	return &Error{
		Kind:           base.Kind,
		Code:           base.Code,
		HttpStatusCode: base.HttpStatusCode,
		Message:        message,
	}
}

// From は任意のエラーを *Error に変換する
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(ErrInternal, err)
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// PublicMessage はクライアントに返すメッセージ
// 検証系はそのまま、上流/永続化系は汎用メッセージにする
func (err *Error) PublicMessage() string {
	switch err.Kind {
	case KindValidation, KindNotFound, KindUnauthorized:
		return err.Message
	case KindUpstream:
		return "the astrology service is temporarily unavailable, please try again"
	default:
		return "internal server error"
	}
}
