package block

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord prefixes record content hashes.
// Version suffix enables future algorithm migration.
const DomainRecord = "dbforge/record/v1"

// MarshalCanonical produces the canonical encoding of f used for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content hashes.
//
// Differences from MarshalField:
//  1. Strings (names included) are NFC normalized
//  2. Invalid UTF-8 is replaced with U+FFFD
//
// Field order is kept as-is: record blocks are ordered, so two records
// that differ only in field order are different content.
func MarshalCanonical(f Field) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendField(&buf, f, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

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

// Hash computes the content hash of a top-level block.
// Returns error if f cannot be canonically marshaled.
func Hash(f Field) (string, error) {
	canonical, err := MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(f Field) string {
	h, err := Hash(f)
	if err != nil {
		panic(err)
	}
	return h
}
