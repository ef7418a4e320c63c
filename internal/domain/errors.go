package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrInvalidEvent = errors.New("invalid subtitle event")
var ErrUnsupported = errors.New("unsupported operation")
var ErrInvalidRequest = errors.New("invalid request")
