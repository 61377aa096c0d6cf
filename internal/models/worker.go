package models

import "encoding/json"

// Worker is a GPU VM hosting the coder and imagegen containers. Hardware is
// the deployer's opaque handle, persisted as JSON so it round-trips through
// the store untouched. The setup state machine is materialised entirely in
// the two request id columns and the setup_finished flag.
type Worker struct {
	ID                 int32           `json:"id"`
	Hardware           json.RawMessage `json:"hardware"`
	CoderDeployment    *int64          `json:"coder_deployment,omitempty"`
	ImagegenDeployment *int64          `json:"imagegen_deployment,omitempty"`
	SetupFinished      bool            `json:"setup_finished"`
	Assignment         *int32          `json:"assignment,omitempty"`
	Dynamic            bool            `json:"dynamic"`
}
