package redis

import "errors"

type (
	remoteError          struct{ error }
	deserializationError struct{ error }
)

func (r *remoteError) Unwrap() error          { return r.error }
func (d *deserializationError) Unwrap() error { return d.error }

// IsRemoteError indica se o erro veio de uma ida ao Redis. São esperados
// enquanto o Redis está indisponível.
func IsRemoteError(err error) bool {
	var target *remoteError
	return errors.As(err, &target)
}

// IsDeserializationError indica que um registro gravado não pôde ser decodificado.
func IsDeserializationError(err error) bool {
	var target *deserializationError
	return errors.As(err, &target)
}

func ErrFromRemote(err error) error {
	return &remoteError{
		error: err,
	}
}

func ErrFromDeserialization(err error) error {
	return &deserializationError{
		error: err,
	}
}
