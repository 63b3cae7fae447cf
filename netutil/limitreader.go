package netutil

import (
	"errors"
	"fmt"
	"io"
)

// LimitedReader wraps an io.Reader with a hard size cap. Unlike
// io.LimitReader it fails loudly when the cap is exceeded instead of
// silently truncating, so oversized package downloads are rejected
// rather than corrupted.
type LimitedReader struct {
	R     io.Reader
	N     int64 // max bytes remaining
	Limit int64 // original limit, for error messages
	read  int64
}

// NewLimitedReader creates a LimitedReader that reads at most limit bytes.
func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{R: r, N: limit, Limit: limit}
}

// Read implements io.Reader with size limit enforcement.
func (l *LimitedReader) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		return 0, &SizeLimitExceededError{Limit: l.Limit, Read: l.read}
	}
	if int64(len(p)) > l.N {
		p = p[:l.N]
	}

	n, err = l.R.Read(p)
	l.N -= int64(n)
	l.read += int64(n)

	if l.N == 0 && err == nil {
		// At the cap exactly: probe one byte to tell "fits" from "over".
		var probe [1]byte
		extra, probeErr := l.R.Read(probe[:])
		if extra > 0 {
			return n, &SizeLimitExceededError{Limit: l.Limit, Read: l.read + 1}
		}
		if probeErr == io.EOF {
			return n, io.EOF
		}
		if probeErr != nil {
			return n, probeErr
		}
	}
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (l *LimitedReader) BytesRead() int64 {
	return l.read
}

// SizeLimitExceededError is returned when the size cap is exceeded.
type SizeLimitExceededError struct {
	Limit int64
	Read  int64
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("size limit exceeded: read %d bytes, limit is %d bytes", e.Read, e.Limit)
}

// IsSizeLimitExceededError reports whether err is a SizeLimitExceededError.
func IsSizeLimitExceededError(err error) bool {
	var target *SizeLimitExceededError
	return errors.As(err, &target)
}

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
