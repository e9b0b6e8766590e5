package upload

import "errors"

var (
	// ErrMediaTooLarge indicates the payload exceeds the per-kind max size.
	ErrMediaTooLarge = errors.New("media payload too large")
	// ErrEmptyUpload indicates the upload pipeline produced no usable result.
	ErrEmptyUpload = errors.New("upload produced no result")
)
