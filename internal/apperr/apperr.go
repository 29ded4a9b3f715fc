package apperr

import (
	"errors"
	"fmt"
)

// Kind — класс ошибки, по нему хендлер решает, что показать пользователю.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// GenericMessage показывается вместо текста внутренних ошибок.
const GenericMessage = "Внутренняя ошибка, попробуйте позже"

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает по виду и тексту, чтобы работали сентинелы ниже.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Validation(msg string) error      { return New(KindValidation, msg) }
func Unauthenticated(msg string) error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) error       { return New(KindForbidden, msg) }
func NotFound(msg string) error        { return New(KindNotFound, msg) }
func Conflict(msg string) error        { return New(KindConflict, msg) }

// Internal оборачивает сбой БД или файловой системы.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

var (
	ErrLostRace        = Conflict("Операция больше недоступна: состояние проекта изменилось")
	ErrAlreadyRated    = Conflict("Вы уже оставили отзыв по этому проекту")
	ErrAlreadyProposed = Conflict("Вы уже отправили предложение по этому проекту")
	ErrOpenIssues      = Conflict("Закройте все открытые вопросы перед завершением проекта")
)

// KindOf возвращает вид ошибки; всё, что не *Error, считается внутренним сбоем.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message — текст для пользователя.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return GenericMessage
}
