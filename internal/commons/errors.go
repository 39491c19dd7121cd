package commons

import "errors"

var ErrRecordNotFound = errors.New("Record not found")

// ErrConflict signals an optimistic-concurrency failure on save: the
// record's version changed between load and save. Retryable.
var ErrConflict = errors.New("Record version conflict")
