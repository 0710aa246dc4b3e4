package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

func validatePassword(p string) error {
	if utf8.RuneCountInString(p) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", domain.ErrWeakPassword, minPasswordLength)
	}
	if len(p) > maxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", domain.ErrWeakPassword, maxPasswordBytes)
	}
	return nil
}
