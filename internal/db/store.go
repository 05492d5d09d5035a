package db

import (
	"errors"
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

var tlsErrorPattern = regexp.MustCompile(`(?i)ssl|tls`)

// IsTLSError reports whether an error message looks like a TLS/SSL failure.
func IsTLSError(err error) bool {
	return err != nil && tlsErrorPattern.MatchString(err.Error())
}

// ErrorCode extracts a driver-specific code for health reports, or "".
func ErrorCode(err error) string {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Name != "" {
			return cmdErr.Name
		}
		return strconv.Itoa(int(cmdErr.Code))
	}
	return pgErrorCode(err)
}
