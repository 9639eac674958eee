package model

// AnalysisPayload is the body handed to the analysis worker. TokenValue is
// the stored ciphertext; the worker decrypts it on its own side.
type AnalysisPayload struct {
	Branch      string      `json:"branch"`
	RepoID      string      `json:"repo_id"`
	TokenID     string      `json:"token_id"`
	TokenValue  string      `json:"token_value"`
	GitProvider ProviderTag `json:"git_provider"`
	UserID      string      `json:"user_id"`
	Priority    int         `json:"priority"`
	ContextID   string      `json:"context_id"`
}

// JobEnvelope is the queued job description.
type JobEnvelope struct {
	JobType JobType         `json:"job_type"`
	Payload AnalysisPayload `json:"payload"`
}
