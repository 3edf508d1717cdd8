// Package vaulterr carries the result envelope every core boundary returns:
// a success tag, an enumerated error kind, and an optional context string
// naming the offending field or argument. Kinds are a typed enum rather than
// string sentinels so callers can switch on them without string-matching.
package vaulterr

import "fmt"

// Kind enumerates the error categories the core can raise. Never format a
// user-facing message from a Kind directly here — that belongs to a single
// formatter the caller owns (§7); this package only carries the tag.
type Kind int

const (
	NoError Kind = iota
	Bug
	Timeout
	ArgumentInvalid
	FileModeInvalid
	HashModeInvalid
	ChainhashModeInvalid
	ChainhashFormatInvalid
	ChainhashDatapartInvalid
	ChainhashDatablockOutOfRange
	ChainhashDatablockAlreadyComplete
	Chainhash1Invalid
	Chainhash2Invalid
	IterationsInvalid
	DatablockNotComplete
	DatablockTooLong
	PasswordCharInvalid
	PasswordInvalid
	PasswordTooShort
	LengthInvalid
	EmptyFilePath
	ExtensionInvalid
	FilePathInvalid
	FileExists
	FileNotFound
	FileNotCreated
	FileNotDeleted
	FileNotOpen
	FileNotEmpty
	FileRead
	NotEnoughData
	WrongWorkflow
	ApiStateInvalid
	DataHeaderSettingsIncomplete
	FileDataStructIncomplete
	FileDataInvalid
)

var kindNames = map[Kind]string{
	NoError:                            "NoError",
	Bug:                                "Bug",
	Timeout:                            "Timeout",
	ArgumentInvalid:                    "ArgumentInvalid",
	FileModeInvalid:                    "FileModeInvalid",
	HashModeInvalid:                    "HashModeInvalid",
	ChainhashModeInvalid:               "ChainhashModeInvalid",
	ChainhashFormatInvalid:             "ChainhashFormatInvalid",
	ChainhashDatapartInvalid:           "ChainhashDatapartInvalid",
	ChainhashDatablockOutOfRange:       "ChainhashDatablockOutOfRange",
	ChainhashDatablockAlreadyComplete:  "ChainhashDatablockAlreadyComplete",
	Chainhash1Invalid:                  "Chainhash1Invalid",
	Chainhash2Invalid:                  "Chainhash2Invalid",
	IterationsInvalid:                  "IterationsInvalid",
	DatablockNotComplete:               "DatablockNotComplete",
	DatablockTooLong:                   "DatablockTooLong",
	PasswordCharInvalid:                "PasswordCharInvalid",
	PasswordInvalid:                    "PasswordInvalid",
	PasswordTooShort:                   "PasswordTooShort",
	LengthInvalid:                      "LengthInvalid",
	EmptyFilePath:                      "EmptyFilePath",
	ExtensionInvalid:                   "ExtensionInvalid",
	FilePathInvalid:                    "FilePathInvalid",
	FileExists:                         "FileExists",
	FileNotFound:                       "FileNotFound",
	FileNotCreated:                     "FileNotCreated",
	FileNotDeleted:                     "FileNotDeleted",
	FileNotOpen:                        "FileNotOpen",
	FileNotEmpty:                       "FileNotEmpty",
	FileRead:                           "FileRead",
	NotEnoughData:                      "NotEnoughData",
	WrongWorkflow:                      "WrongWorkflow",
	ApiStateInvalid:                    "ApiStateInvalid",
	DataHeaderSettingsIncomplete:       "DataHeaderSettingsIncomplete",
	FileDataStructIncomplete:           "FileDataStructIncomplete",
	FileDataInvalid:                    "FileDataInvalid",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned across every core boundary. Context
// names the offending field or argument (e.g. "iterations", "hash_mode").
type Error struct {
	Kind    Kind
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

// New builds an *Error for the given kind and context.
func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// Is reports whether err is itself an *Error carrying the given Kind. It
// does not unwrap wrapped errors, and *Error has no Is method, so
// errors.Is matches an *Error only by pointer identity.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*Error)
	if !ok {
		return false
	}
	return ve.Kind == kind
}

// Status is the tri-state success tag from §7: a call either succeeds,
// fails outright, or times out (in which case the password may still be
// correct and the caller must not treat it as failure).
type Status int

const (
	Success Status = iota
	Fail
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Fail:
		return "FAIL"
	case TimedOut:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}
