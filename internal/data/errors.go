package data

import "errors"

// ErrStorageDisabled is returned by callers that need a repository the configuration turned off.
var ErrStorageDisabled = errors.New("storage is disabled")
