package ddbsdk

import "errors"

// ErrNotFound is returned by Get when no item has the requested key.
var ErrNotFound = errors.New("item not found")
