package domain

import "errors"

var (
	// ErrEncoding means the embedding backend could not produce a vector.
	ErrEncoding = errors.New("encoding failure")

	// ErrPersistence wraps storage I/O errors.
	ErrPersistence = errors.New("persistence failure")

	ErrNotFound = errors.New("conversation not found")

	// ErrCorruptRecord marks a stored row that cannot be decoded. Such rows
	// are skipped on read.
	ErrCorruptRecord = errors.New("corrupt record")

	ErrDuplicate         = errors.New("conversation already exists")
	ErrInvalid           = errors.New("invalid conversation")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
