package model

import "time"

// Credential is a stored, provider-scoped git token ("git label"). The
// plaintext token is never held here: TokenCiphertext is encrypted with the
// owner's per-user key and MaskedToken is safe to display as-is.
type Credential struct {
	ID               string
	OwnerID          string
	Label            string
	Provider         ProviderTag
	TokenCiphertext  string
	TokenFingerprint string // HMAC of the token under the owner's key; backs duplicate detection.
	MaskedToken      string
	ProviderUsername string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewCredential carries everything the store needs to persist a credential.
// ID and timestamps are assigned by the store.
type NewCredential struct {
	Label            string
	OwnerID          string
	Provider         ProviderTag
	TokenCiphertext  string
	TokenFingerprint string
	MaskedToken      string
	ProviderUsername string
}

// CredentialPage is one page of an owner's credentials plus the total count
// for the same provider filter.
type CredentialPage struct {
	Items []Credential
	Total int
}
