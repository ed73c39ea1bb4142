package chat

import "errors"

var ErrInvalidInput = errors.New("invalid chat input")
