package model

// ProviderTag identifies the git hosting service a credential was issued by.
type ProviderTag string

const (
	ProviderGitHub ProviderTag = "github"
	ProviderGitLab ProviderTag = "gitlab"
)

// Valid reports whether t is one of the known provider tags.
func (t ProviderTag) Valid() bool {
	switch t {
	case ProviderGitHub, ProviderGitLab:
		return true
	}
	return false
}

// JobType names the kind of work a queued job carries.
type JobType string

const (
	JobTypeRepositoryAnalysis JobType = "repository_analysis"
)

// JobStatus represents the lifecycle state of a queued job row.
type JobStatus string

const (
	JobStatusQueued JobStatus = "queued"
)
