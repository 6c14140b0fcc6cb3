package updater

import "errors"

// Failure classes. Every error returned by Apply wraps exactly one of them.
var (
	ErrNetwork      = errors.New("update network failure")
	ErrStorage      = errors.New("update storage failure")
	ErrVerification = errors.New("update verification failure")
)
