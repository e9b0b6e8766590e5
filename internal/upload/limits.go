package upload

import (
	"fmt"
	"io"
)

const (
	// MaxPhotoBytes is the max accepted photo payload size.
	MaxPhotoBytes int64 = 50 * 1024 * 1024
	// MaxDocumentBytes is the max accepted document payload size; voice
	// messages ride the document flow and share it.
	MaxDocumentBytes int64 = 200 * 1024 * 1024
)

// ReadAllWithLimit reads from reader and rejects payloads larger than maxBytes.
func ReadAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be greater than 0")
	}
	limited := &io.LimitedReader{
		R: reader,
		N: maxBytes + 1,
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrMediaTooLarge, maxBytes)
	}
	return data, nil
}
