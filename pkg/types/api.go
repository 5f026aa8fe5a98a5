package types

// CodebaseInfo describes one registered codebase plugin.
type CodebaseInfo struct {
	// Registry identifier of the codebase.
	// example: detection
	Name string `json:"name" example:"detection"`
}

// CodebasesResponse wraps the list returned by GET /codebases.
type CodebasesResponse struct {
	// Registered codebase plugins, sorted by name.
	Codebases []CodebaseInfo `json:"codebases"`
}

// ArtifactInfo describes one backend artifact discovered on disk.
type ArtifactInfo struct {
	// Stable identifier (the artifact file name).
	// example: two_stage_part0.mmdgo
	ID string `json:"id" example:"two_stage_part0.mmdgo"`
	// Absolute path to the artifact file.
	Path string `json:"path"`
	// Codebase that produced the artifact.
	// example: detection
	Codebase string `json:"codebase,omitempty" example:"detection"`
	// Partition the artifact belongs to; empty for end-to-end exports.
	// example: part0
	Partition string `json:"partition,omitempty" example:"part0"`
	// File size in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// RunStatus summarizes the progress of one deployment or evaluation run.
type RunStatus struct {
	// Unique id assigned when the task was constructed.
	RunID string `json:"run_id"`
	// Codebase the run is bound to.
	// example: detection
	Codebase string `json:"codebase" example:"detection"`
	// Current stage, e.g. "loading", "inference", "evaluate".
	// example: inference
	Stage string `json:"stage" example:"inference"`
	// Samples processed so far.
	Done int `json:"done"`
	// Total samples in the run; 0 when unknown.
	Total int `json:"total"`
	// Last error, empty while healthy.
	Error string `json:"error,omitempty"`
}

// StatusResponse is the payload of GET /status.
type StatusResponse struct {
	// Overall service state: idle, running, or error.
	// example: running
	State string `json:"state" example:"running"`
	// Active or most recent run, if any.
	Run *RunStatus `json:"run,omitempty"`
	// Backend artifacts currently visible in the artifact directory.
	Artifacts []ArtifactInfo `json:"artifacts"`
}

// RunStartedResponse is the payload of POST /runs.
type RunStartedResponse struct {
	// Id of the run that was started.
	RunID string `json:"run_id"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: unknown codebase: pointcloud
	Error string `json:"error" example:"unknown codebase: pointcloud"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
