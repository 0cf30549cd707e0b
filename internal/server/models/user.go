// Package models defines server-side domain records.
package models

import "time"

// User is the credential subset of a blog account record.
//
// PasswordHash is the opaque output of the password hasher. PepperVersion
// is the index into the pepper sequence that was current when the hash was
// written; it is a verification hint, not a guarantee, since the sequence
// may have rotated since.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	PepperVersion int
	CreatedAt     time.Time
}
