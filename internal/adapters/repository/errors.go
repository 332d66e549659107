package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("published state version conflict")
	ErrClosed          = errors.New("store closed")
)
