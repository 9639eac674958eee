package model

import "time"

// Repository is a provider repository imported by an owner through one of
// their credentials.
type Repository struct {
	ID                string
	OwnerID           string
	CredentialID      string
	Provider          ProviderTag
	ProviderRepoID    string
	Name              string
	FullName          string
	Description       *string
	URL               string
	DefaultBranch     string
	ForksCount        int
	StarsCount        int
	SizeKB            int64
	Private           bool
	Languages         []string
	ProviderCreatedAt *time.Time
	AddedAt           time.Time
}

// RepositoryPage is one page of imported repositories plus the owner's total.
type RepositoryPage struct {
	Items []Repository
	Total int
}
