// Package deployer abstracts GPU VM provisioning. Handles are opaque JSON
// values that round-trip through the store, so a restarted process can keep
// managing VMs it did not provision itself.
package deployer

import (
	"context"
	"encoding/json"
)

// DeployInput carries the initial OS provisioning parameters for a new VM.
type DeployInput struct {
	InitialConfig *string
	AcmeEmail     *string
	Domain        *string
	Encrypted     *bool
	UserPasswd    *string
	XnodeOwner    *string
}

// IPv4 is the result of an address lookup. Providers without address support
// report Supported = false; a supported lookup may still return a nil Addr
// while allocation is pending.
type IPv4 struct {
	Supported bool
	Addr      *string
}

// HardwareDeployer provisions and tears down GPU worker VMs.
type HardwareDeployer interface {
	Deploy(ctx context.Context, input DeployInput) (json.RawMessage, error)
	Undeploy(ctx context.Context, hardware json.RawMessage) error
	IPv4(ctx context.Context, hardware json.RawMessage) (IPv4, error)
	// Identify renders a handle for log lines.
	Identify(hardware json.RawMessage) string
}
