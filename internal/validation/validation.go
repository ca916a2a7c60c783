// Package validation holds the startup sanity checks cmd/server/main.go
// runs before binding a listener or reading a key file: valid addresses,
// a keys directory that actually exists, and bounds on the handful of
// operator-supplied numeric knobs (spec.md §4's chunk size).
package validation

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

var (
	ErrInvalidPath   = errors.New("invalid file path")
	ErrPathNotExists = errors.New("path does not exist")
	ErrInvalidAddr   = errors.New("invalid listen address")
	ErrEmptyString   = errors.New("value must not be empty")
	ErrOutOfRange    = errors.New("value out of range")
)

// ValidateFilePath checks that p is non-empty and, if mustExist is true,
// that it currently resolves to something on disk (used for the keys
// directory, which must be populated before the keyring can load).
func ValidateFilePath(p string, mustExist bool) error {
	if p == "" {
		return ErrInvalidPath
	}
	p = filepath.Clean(p)
	if mustExist {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %v", ErrPathNotExists, err)
		}
	}
	return nil
}

// ValidateAddr checks that addr parses as a TCP listen address, catching
// a typo'd --grpc-addr/--rest-addr before the server tries to bind it.
func ValidateAddr(addr string) error {
	if addr == "" {
		return ErrInvalidAddr
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddr, err)
	}
	return nil
}

// ValidateStringNonEmpty rejects the empty string, used for operator
// inputs that have no sane default (e.g. a signing key id).
func ValidateStringNonEmpty(s string) error {
	if s == "" {
		return ErrEmptyString
	}
	return nil
}

// ValidateRangeInt checks v falls within [min, max] inclusive, used for
// bounding the configurable FetchDataFrame chunk size to something that
// won't starve the stream (too small) or blow past gRPC's default
// message-size limit (too large).
func ValidateRangeInt(v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, v, min, max)
	}
	return nil
}
