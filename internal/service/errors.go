package service

import (
	"fmt"
	"time"

	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a bank or a pad does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoPads is returned when no pad of an archive could be imported.
	ErrNoPads = errors.New("no pad could be imported")
	// ErrLoginRequired is returned when an operation needs an identified user.
	ErrLoginRequired = errors.New("login required")
	// ErrNotTransferable is returned when moving a pad out of a locked bank.
	ErrNotTransferable = errors.New("bank does not allow pad transfers")
)

// DecryptionError is returned when no candidate key opens a sealed archive.
type DecryptionError struct {
	// LoginRequired is true when the caller is anonymous, so identity based keys were not tried.
	LoginRequired bool
	Tried         int
	Last          error
}

func (e *DecryptionError) Error() string {
	msg := fmt.Sprintf("could not decrypt archive (%d key(s) tried)", e.Tried)
	if e.LoginRequired {
		msg += ", login required"
	}
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *DecryptionError) Unwrap() error {
	return e.Last
}

// AccessDeniedError is returned when a user is not granted an admin bank.
type AccessDeniedError struct {
	BankID string
	UserID string
}

func (e *AccessDeniedError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("access denied to bank %s: login required", e.BankID)
	}
	return fmt.Sprintf("access denied to bank %s for user %s", e.BankID, e.UserID)
}

// DuplicateImportError is returned when the imported bank already exists locally.
type DuplicateImportError struct {
	OriginID string
	BankID   string
	Name     string
}

func (e *DuplicateImportError) Error() string {
	return fmt.Sprintf("bank %s already imported as %q (%s)", e.OriginID, e.Name, e.BankID)
}

// TimeoutError is returned when a step exceeds its deadline.
type TimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Step, e.Timeout)
}

// NotExportableError is returned when exporting a bank that forbids it.
type NotExportableError struct {
	BankID string
}

func (e *NotExportableError) Error() string {
	return fmt.Sprintf("bank %s is not exportable", e.BankID)
}

//
//-----
//

// A Class is the human readable cause of a failed operation.
type Class string

// Error classes.
const (
	ClassInvalidFile   Class = "invalid file"
	ClassDecryption    Class = "decryption failed"
	ClassLogin         Class = "login required"
	ClassAccess        Class = "access denied"
	ClassTimeout       Class = "timeout"
	ClassQuota         Class = "quota exceeded"
	ClassDuplicate     Class = "duplicate bank"
	ClassNotExportable Class = "not exportable"
	ClassLocked        Class = "not transferable"
	ClassNoPads        Class = "no pads"
	ClassNotFound      Class = "not found"
	ClassInvalidPad    Class = "invalid pad"
	ClassInternal      Class = "internal error"
)

// Cause classifies err. It returns an empty class for a nil error.
func Cause(err error) Class {
	if err == nil {
		return ""
	}

	var (
		ferr *archive.FormatError
		derr *DecryptionError
		aerr *AccessDeniedError
		terr *TimeoutError
		qerr *blobstore.QuotaExceededError
		uerr *DuplicateImportError
		nerr *NotExportableError
	)
	switch {
	case errors.As(err, &derr):
		if derr.LoginRequired {
			return ClassLogin
		}
		return ClassDecryption
	case errors.As(err, &ferr):
		return ClassInvalidFile
	case errors.As(err, &aerr):
		return ClassAccess
	case errors.As(err, &terr):
		return ClassTimeout
	case errors.As(err, &qerr):
		return ClassQuota
	case errors.As(err, &uerr):
		return ClassDuplicate
	case errors.As(err, &nerr):
		return ClassNotExportable
	case errors.Is(err, ErrNoPads):
		return ClassNoPads
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrLoginRequired):
		return ClassLogin
	case errors.Is(err, ErrNotTransferable):
		return ClassLocked
	case errors.Is(err, model.ErrInvalidPad):
		return ClassInvalidPad
	}
	return ClassInternal
}
