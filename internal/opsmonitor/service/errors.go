package service

import "errors"

var (
	ErrCannotCompute      = errors.New("reconciliation cannot be computed")
	ErrInvalidAuditEntry  = errors.New("invalid audit entry")
	ErrInvalidOrderNumber = errors.New("invalid order number")
)
