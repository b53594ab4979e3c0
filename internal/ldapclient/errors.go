package ldapclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Kind is the category a directory failure is classified into.
type Kind int

const (
	KindDirectory Kind = iota
	KindConnection
	KindAuthentication
	KindNotFound
	KindAlreadyExists
	KindValidation
	KindTimeout
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindPermission:
		return "permission"
	default:
		return "directory"
	}
}

// Sentinels for errors.Is; an *Error matches the sentinel of its Kind.
var (
	ErrDirectory      = errors.New("directory error")
	ErrConnection     = errors.New("directory connection error")
	ErrAuthentication = errors.New("directory authentication error")
	ErrNotFound       = errors.New("directory object not found")
	ErrAlreadyExists  = errors.New("directory entry already exists")
	ErrValidation     = errors.New("validation error")
	ErrTimeout        = errors.New("directory operation timed out")
	ErrPermission     = errors.New("directory permission denied")
)

var kindSentinels = map[Kind]error{
	KindDirectory:      ErrDirectory,
	KindConnection:     ErrConnection,
	KindAuthentication: ErrAuthentication,
	KindNotFound:       ErrNotFound,
	KindAlreadyExists:  ErrAlreadyExists,
	KindValidation:     ErrValidation,
	KindTimeout:        ErrTimeout,
	KindPermission:     ErrPermission,
}

// CodeInfo is the interpretation of one LDAP result code.
type CodeInfo struct {
	Kind Kind
	Text string
}

// resultCodes is shared by the session layer and diagnostic logging.
var resultCodes = map[uint16]CodeInfo{
	ldap.LDAPResultTimeLimitExceeded:           {KindTimeout, "time limit exceeded"},
	ldap.LDAPResultSizeLimitExceeded:           {KindDirectory, "size limit exceeded"},
	ldap.LDAPResultStrongAuthRequired:          {KindAuthentication, "strong authentication required"},
	ldap.LDAPResultNoSuchAttribute:             {KindNotFound, "no such attribute"},
	ldap.LDAPResultConstraintViolation:         {KindValidation, "constraint violation (password policy or attribute constraint)"},
	ldap.LDAPResultAttributeOrValueExists:      {KindAlreadyExists, "attribute or value already exists"},
	ldap.LDAPResultInvalidAttributeSyntax:      {KindValidation, "invalid attribute syntax"},
	ldap.LDAPResultNoSuchObject:                {KindNotFound, "no such object"},
	ldap.LDAPResultInvalidDNSyntax:             {KindValidation, "invalid DN syntax"},
	ldap.LDAPResultInappropriateAuthentication: {KindAuthentication, "inappropriate authentication"},
	ldap.LDAPResultInvalidCredentials:          {KindAuthentication, "invalid credentials"},
	ldap.LDAPResultInsufficientAccessRights:    {KindPermission, "insufficient access rights"},
	ldap.LDAPResultBusy:                        {KindConnection, "server busy"},
	ldap.LDAPResultUnavailable:                 {KindConnection, "server unavailable"},
	ldap.LDAPResultUnwillingToPerform:          {KindDirectory, "server unwilling to perform"},
	ldap.LDAPResultObjectClassViolation:        {KindValidation, "object class violation"},
	ldap.LDAPResultNotAllowedOnNonLeaf:         {KindDirectory, "operation not allowed on non-leaf entry"},
	ldap.LDAPResultEntryAlreadyExists:          {KindAlreadyExists, "entry already exists"},
	ldap.ErrorNetwork:                          {KindConnection, "network error"},
}

// Interpret maps a result code to its category and human text. Unmapped codes are KindDirectory.
func Interpret(code uint16) CodeInfo {
	if info, ok := resultCodes[code]; ok {
		return info
	}
	if text, ok := ldap.LDAPResultCodeMap[code]; ok {
		return CodeInfo{Kind: KindDirectory, Text: strings.ToLower(text)}
	}
	return CodeInfo{Kind: KindDirectory, Text: "unrecognized result code"}
}

// Error is a classified directory failure. Code is the raw LDAP result code (0 when none was received).
type Error struct {
	Op   string
	Kind Kind
	Code uint16
	Text string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ldap %s: %s", e.Op, e.Text)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Retryable reports whether a fresh session might succeed where this one failed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout
}

// NewValidationError reports malformed input that was never sent to the directory.
func NewValidationError(op, text string) *Error {
	return &Error{Op: op, Kind: KindValidation, Text: text}
}

// KindOf returns the Kind of err, or KindDirectory when err was not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDirectory
}

// IsSessionFatal reports whether the session that produced err should be discarded.
func IsSessionFatal(err error) bool {
	k := KindOf(err)
	return k == KindConnection || k == KindTimeout
}

// Classify wraps a raw error from the LDAP library into an *Error.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Kind: KindTimeout, Text: "deadline exceeded", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Op: op, Kind: KindConnection, Text: "operation cancelled", Err: err}
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		info := Interpret(ldapErr.ResultCode)
		if ldapErr.ResultCode == ldap.ErrorNetwork && isTimeoutText(ldapErr.Err) {
			info = CodeInfo{Kind: KindTimeout, Text: "operation timed out"}
		}
		if ldapErr.ResultCode == ldap.ErrorNetwork && nestedTimeout(ldapErr.Err) {
			info = CodeInfo{Kind: KindTimeout, Text: "connect timed out"}
		}
		return &Error{Op: op, Kind: info.Kind, Code: ldapErr.ResultCode, Text: info.Text, Err: err}
	}

	if nestedTimeout(err) {
		return &Error{Op: op, Kind: KindTimeout, Text: "operation timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Op: op, Kind: KindConnection, Text: "network error", Err: err}
	}
	return &Error{Op: op, Kind: KindDirectory, Text: "unexpected failure", Err: err}
}

func nestedTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTimeoutText(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "timed out")
}
