package values

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Digest represents a content hash used to pin extension packages.
type Digest struct {
	algorithm string // sha256, sha512
	value     string // hex-encoded hash
}

// NewDigest creates a digest from algorithm and hex value.
func NewDigest(algorithm, hexValue string) (Digest, error) {
	switch algorithm {
	case "sha256", "sha512":
	default:
		return Digest{}, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}

	if hexValue == "" {
		return Digest{}, fmt.Errorf("digest value cannot be empty")
	}
	if _, err := hex.DecodeString(hexValue); err != nil {
		return Digest{}, fmt.Errorf("digest value is not hex: %w", err)
	}

	return Digest{algorithm: algorithm, value: hexValue}, nil
}

// ParseDigest parses a digest string (e.g., "sha256:abc123...").
func ParseDigest(s string) (Digest, error) {
	algorithm, value, ok := strings.Cut(s, ":")
	if !ok {
		return Digest{}, fmt.Errorf("invalid digest format: %s", s)
	}
	return NewDigest(algorithm, value)
}

// DigestBytes computes the SHA-256 digest of a package payload.
func DigestBytes(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest{algorithm: "sha256", value: hex.EncodeToString(sum[:])}
}

// DigestReader computes the SHA-256 digest of reader contents.
func DigestReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return Digest{algorithm: "sha256", value: hex.EncodeToString(h.Sum(nil))}, nil
}

// String returns the canonical "algorithm:value" form.
func (d Digest) String() string {
	return d.algorithm + ":" + d.value
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns the hex-encoded hash value.
func (d Digest) Value() string {
	return d.value
}

// IsEmpty returns true if this is the zero value.
func (d Digest) IsEmpty() bool {
	return d.value == ""
}

// Equals checks equality with another digest.
func (d Digest) Equals(other Digest) bool {
	return d.algorithm == other.algorithm && d.value == other.value
}

// Verify validates that data matches this digest.
func (d Digest) Verify(data []byte) error {
	var computed Digest
	switch d.algorithm {
	case "sha256":
		sum := sha256.Sum256(data)
		computed = Digest{algorithm: "sha256", value: hex.EncodeToString(sum[:])}
	case "sha512":
		sum := sha512.Sum512(data)
		computed = Digest{algorithm: "sha512", value: hex.EncodeToString(sum[:])}
	default:
		return fmt.Errorf("unsupported digest algorithm: %s", d.algorithm)
	}

	if !d.Equals(computed) {
		return fmt.Errorf("digest mismatch: expected %s, got %s", d.String(), computed.String())
	}
	return nil
}
