package models

import (
	"errors"
)

// ErrValidation marks a request rejected before any provider call; handlers
// map it to a 400.
var ErrValidation = errors.New("validation error")
