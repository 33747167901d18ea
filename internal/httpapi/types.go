package httpapi

// ProcessRequest is the optional request body for
// POST /api/v1/tickets/:key/process.
type ProcessRequest struct {
	// NoPush suppresses publication even when validation passes.
	NoPush bool `json:"no_push"`
	// RepoPath overrides the configured working tree for this run.
	RepoPath string `json:"repo_path"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Busy    bool   `json:"busy"`
}
