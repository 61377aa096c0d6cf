package models

// Deployment is one user-submitted change request against a project, tracked
// through the coding and imagegen stages. Timestamps are unix seconds and
// monotone in declaration order.
type Deployment struct {
	ID                 int32   `json:"id"`
	Project            string  `json:"project"`
	Instructions       string  `json:"instructions"`
	SubmittedAt        int64   `json:"submitted_at"`
	CodingStartedAt    *int64  `json:"coding_started_at,omitempty"`
	CodingFinishedAt   *int64  `json:"coding_finished_at,omitempty"`
	CodingGitHash      *string `json:"coding_git_hash,omitempty"`
	ImagegenStartedAt  *int64  `json:"imagegen_started_at,omitempty"`
	ImagegenFinishedAt *int64  `json:"imagegen_finished_at,omitempty"`
	ImagegenGitHash    *string `json:"imagegen_git_hash,omitempty"`
	DeploymentRequest  *int64  `json:"deployment_request,omitempty"`
	Deleted            bool    `json:"-"`
}

// Finished reports whether both pipeline stages have completed.
func (d *Deployment) Finished() bool {
	return d.ImagegenFinishedAt != nil
}

// CoderAssignment is the document written to the coder container before its
// service is started. Field names are part of the worker contract.
type CoderAssignment struct {
	Project      string  `json:"project"`
	Instructions string  `json:"instructions"`
	Version      *string `json:"version"`
}

// ImagegenAssignment is the document written to the imagegen container.
type ImagegenAssignment struct {
	Project string `json:"project"`
}

// StageOutput is the document the worker writes back over the assignment file
// when a stage exits.
type StageOutput struct {
	GitHash string `json:"git_hash"`
}
