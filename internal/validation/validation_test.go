package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFilePathRejectsEmpty(t *testing.T) {
	if err := ValidateFilePath("", false); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestValidateFilePathMustExist(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateFilePath(dir, true); err != nil {
		t.Errorf("ValidateFilePath(%q, true) failed: %v", dir, err)
	}

	missing := filepath.Join(dir, "does-not-exist")
	if err := ValidateFilePath(missing, true); !errors.Is(err, ErrPathNotExists) {
		t.Errorf("err = %v, want ErrPathNotExists", err)
	}
}

func TestValidateFilePathNotMustExistAllowsMissing(t *testing.T) {
	missing := filepath.Join(os.TempDir(), "bastionlab-never-created")
	if err := ValidateFilePath(missing, false); err != nil {
		t.Errorf("ValidateFilePath(%q, false) failed: %v", missing, err)
	}
}

func TestValidateAddrRejectsEmptyAndMalformed(t *testing.T) {
	if err := ValidateAddr(""); !errors.Is(err, ErrInvalidAddr) {
		t.Errorf("err = %v, want ErrInvalidAddr", err)
	}
	if err := ValidateAddr("not an address"); !errors.Is(err, ErrInvalidAddr) {
		t.Errorf("err = %v, want ErrInvalidAddr", err)
	}
}

func TestValidateAddrAcceptsWellFormed(t *testing.T) {
	if err := ValidateAddr("127.0.0.1:50051"); err != nil {
		t.Errorf("ValidateAddr failed: %v", err)
	}
}

func TestValidateStringNonEmpty(t *testing.T) {
	if err := ValidateStringNonEmpty(""); !errors.Is(err, ErrEmptyString) {
		t.Errorf("err = %v, want ErrEmptyString", err)
	}
	if err := ValidateStringNonEmpty("alice"); err != nil {
		t.Errorf("ValidateStringNonEmpty(\"alice\") failed: %v", err)
	}
}

func TestValidateRangeInt(t *testing.T) {
	if err := ValidateRangeInt(5, 1, 10); err != nil {
		t.Errorf("ValidateRangeInt(5, 1, 10) failed: %v", err)
	}
	if err := ValidateRangeInt(0, 1, 10); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
	if err := ValidateRangeInt(11, 1, 10); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}
