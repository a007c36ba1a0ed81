package domain

import "errors"

var (
	ErrUnknownLimitType = errors.New("unknown limit type")
	ErrInvalidConfig    = errors.New("invalid rate limiter configuration")
)

func IsUnknownLimitTypeError(err error) bool {
	return errors.Is(err, ErrUnknownLimitType)
}
