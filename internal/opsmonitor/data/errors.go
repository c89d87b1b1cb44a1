package data

import "errors"

var (
	ErrUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrJournalDisabled           = errors.New("audit journal is disabled")
	ErrOrderNotFound             = errors.New("order not found")
)
