package model

import "time"

// ProviderUser is the authenticated identity a provider reports for a token.
type ProviderUser struct {
	ID       string
	Username string
	Name     string
	Email    string
}

// NormalizedRepo is the provider-agnostic repository record produced by a
// ResponseNormalizer. Counts are never negative and absent fields hold their
// zero value.
type NormalizedRepo struct {
	ID            string
	Name          string
	FullName      string
	Description   *string
	URL           string
	DefaultBranch string
	ForksCount    int
	StarsCount    int
	SizeKB        int64
	CreatedAt     *time.Time
	Private       bool
	Languages     []string
}

// Pagination describes where a provider page sits in the full result set.
// NextPage and PrevPage are nil when there is no such page.
type Pagination struct {
	CurrentPage int
	PerPage     int
	TotalCount  int
	TotalPages  int
	HasNext     bool
	HasPrev     bool
	NextPage    *int
	PrevPage    *int
}

// RepoListing is the result of listing a provider's repositories for a
// credential.
type RepoListing struct {
	TotalCount int
	Items      []NormalizedRepo
	Pagination Pagination
}
