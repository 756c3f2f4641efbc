package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "scopeprobe/event/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of a recorded feed event.
// The ID is stable for the same session, sequence, type and payload, so
// re-recording a feed is idempotent.
func EventID(session string, seq int64, eventType string, payload []byte) (string, error) {
	header := Object{
		"session": String(session),
		"seq":     Int(seq),
		"type":    String(eventType),
	}
	canonical, err := MarshalCanonical(header)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	data := make([]byte, 0, len(canonical)+1+len(payload))
	data = append(data, canonical...)
	data = append(data, 0x00)
	data = append(data, payload...)
	return hashWithDomain(DomainEvent, data), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(session string, seq int64, eventType string, payload []byte) string {
	id, err := EventID(session, seq, eventType, payload)
	if err != nil {
		panic(err)
	}
	return id
}
