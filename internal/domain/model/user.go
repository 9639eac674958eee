package model

import "time"

// User is the owner-side secret envelope: a random per-user salt stored
// encrypted under the global secret.
type User struct {
	OwnerID                  string
	EncryptionSaltCiphertext string
	CreatedAt                time.Time
}
