package domain

import "errors"

var (
	// ErrValidation - некорректный или пустой ввод
	ErrValidation = errors.New("validation failed")
	// ErrPermission - роль не позволяет выполнить команду
	ErrPermission = errors.New("permission denied")
	// ErrInvalidState - команда невозможна в текущем состоянии
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

const (
	KindValidation   = "validation"
	KindPermission   = "permission"
	KindInvalidState = "invalid_state"
	KindNotFound     = "not_found"
	KindInternal     = "internal"
)

// Kind возвращает тип ошибки для передачи клиенту
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
