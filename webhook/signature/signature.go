// Package signature signs webhook deliveries so receivers can verify
// the payload came from this service and was not replayed.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Version is the version identifier carried in the signature header.
const Version = "v1"

// ErrEmptySecret is returned when signing with an unconfigured secret.
// Retrying a structurally invalid request wastes the retry budget, so
// callers must abort the delivery instead of retrying.
var ErrEmptySecret = errors.New("signing secret is empty")

// Sign computes the signature header value for a delivery:
// hex-encoded HMAC-SHA256 over "{timestamp}.{payload}" with the endpoint
// secret, formatted as "v1=<hex mac>".
func Sign(secret string, timestamp time.Time, payload []byte) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)

	return fmt.Sprintf("%s=%s", Version, hex.EncodeToString(mac.Sum(nil))), nil
}

// Parse splits a signature header value into version and hex MAC.
func Parse(header string) (version, mac string, err error) {
	parts := strings.SplitN(header, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid signature format, expected 'version=signature'")
	}
	return parts[0], parts[1], nil
}

// Verify checks a signature header using constant-time comparison.
// Returns true if the signature is valid, false otherwise.
func Verify(secret string, timestamp time.Time, payload []byte, header string) (bool, error) {
	version, mac, err := Parse(header)
	if err != nil {
		return false, err
	}
	if version != Version {
		return false, fmt.Errorf("unsupported signature version: %s", version)
	}

	calculated, err := Sign(secret, timestamp, payload)
	if err != nil {
		return false, fmt.Errorf("calculating signature: %w", err)
	}
	_, calculatedMAC, err := Parse(calculated)
	if err != nil {
		return false, fmt.Errorf("parsing calculated signature: %w", err)
	}

	expected, err := hex.DecodeString(mac)
	if err != nil {
		return false, fmt.Errorf("decoding expected signature: %w", err)
	}
	got, err := hex.DecodeString(calculatedMAC)
	if err != nil {
		return false, fmt.Errorf("decoding calculated signature: %w", err)
	}

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare(expected, got) == 1, nil
}
