package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Path params are validated
// before hitting the store so garbage ids 400 instead of 404.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)

	return err == nil
}
