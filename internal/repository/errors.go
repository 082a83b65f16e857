package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrURLNotFound     = errors.New("url not found")
	ErrShortCodeExists = errors.New("short code already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already registered")
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationErrCode
}
