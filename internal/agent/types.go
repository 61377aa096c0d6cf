package agent

import (
	"encoding/json"
	"fmt"
)

// ContainerSettings describes the desired configuration of one container.
type ContainerSettings struct {
	Flake      string  `json:"flake"`
	Network    *string `json:"network,omitempty"`
	NvidiaGPUs []int   `json:"nvidia_gpus,omitempty"`
}

// ContainerChange is the body of a container config.set call. A nil
// UpdateInputs leaves the flake inputs untouched; an empty non-nil slice
// updates all of them.
type ContainerChange struct {
	Settings     ContainerSettings `json:"settings"`
	UpdateInputs []string          `json:"update_inputs"`
}

// OSChange is the body of an os.set call. All fields are optional; absent
// fields keep the node's current value.
type OSChange struct {
	Flake        *string  `json:"flake,omitempty"`
	UpdateInputs []string `json:"update_inputs,omitempty"`
	XnodeOwner   *string  `json:"xnode_owner,omitempty"`
	Domain       *string  `json:"domain,omitempty"`
	AcmeEmail    *string  `json:"acme_email,omitempty"`
	UserPasswd   *string  `json:"user_passwd,omitempty"`
}

// Entity identifies who a permission is granted to. Exactly one of the three
// forms is set. The wire encoding is externally tagged: {"User": id},
// {"Group": id} or the bare string "Any".
type Entity struct {
	user  *uint32
	group *uint32
	any   bool
}

// UserEntity grants to a user id.
func UserEntity(id uint32) Entity { return Entity{user: &id} }

// GroupEntity grants to a group id.
func GroupEntity(id uint32) Entity { return Entity{group: &id} }

// AnyEntity grants to everyone else.
func AnyEntity() Entity { return Entity{any: true} }

func (e Entity) MarshalJSON() ([]byte, error) {
	switch {
	case e.user != nil:
		return json.Marshal(map[string]uint32{"User": *e.user})
	case e.group != nil:
		return json.Marshal(map[string]uint32{"Group": *e.group})
	case e.any:
		return json.Marshal("Any")
	}
	return nil, fmt.Errorf("entity has no grantee")
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "Any" {
			return fmt.Errorf("unknown entity %q", s)
		}
		*e = Entity{any: true}
		return nil
	}

	var tagged map[string]uint32
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if id, ok := tagged["User"]; ok {
		*e = Entity{user: &id}
		return nil
	}
	if id, ok := tagged["Group"]; ok {
		*e = Entity{group: &id}
		return nil
	}
	return fmt.Errorf("unknown entity %s", data)
}

// Permission is one grantee's access to a file.
type Permission struct {
	GrantedTo Entity `json:"granted_to"`
	Read      bool   `json:"read"`
	Write     bool   `json:"write"`
	Execute   bool   `json:"execute"`
}

// rawBytes marshals as a JSON array of numbers, matching the agent's wire
// format for byte content.
type rawBytes []byte

func (b rawBytes) MarshalJSON() ([]byte, error) {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return json.Marshal(out)
}

func (b *rawBytes) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, v := range nums {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// FileContent is the content union returned by read-file. Exactly one
// variant is set.
type FileContent struct {
	UTF8  *UTF8Content  `json:"UTF8,omitempty"`
	Bytes *BytesContent `json:"Bytes,omitempty"`
}

type UTF8Content struct {
	Output string `json:"output"`
}

type BytesContent struct {
	Output rawBytes `json:"output"`
}

// Text returns the UTF-8 content, or an error for binary files.
func (c FileContent) Text() (string, error) {
	if c.UTF8 == nil {
		return "", fmt.Errorf("file content is not UTF-8")
	}
	return c.UTF8.Output, nil
}

// User is an account inside a scope.
type User struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// Group is a group inside a scope.
type Group struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// Process is one running unit inside a scope. Exited units are absent from
// the list.
type Process struct {
	Name string `json:"name"`
}

// ProcessCommand is an action on a process unit.
type ProcessCommand string

const (
	ProcessStart   ProcessCommand = "Start"
	ProcessRestart ProcessCommand = "Restart"
	ProcessStop    ProcessCommand = "Stop"
)

// RequestResult is the outcome union of a tracked agent request. Nil Success
// and Failure means the request is still in flight.
type RequestResult struct {
	Success *RequestSuccess `json:"Success,omitempty"`
	Failure *RequestFailure `json:"Failure,omitempty"`
}

type RequestSuccess struct {
	Body string `json:"body"`
}

type RequestFailure struct {
	Error string `json:"error"`
}

// Succeeded reports whether the request finished successfully.
func (r *RequestResult) Succeeded() bool {
	return r != nil && r.Success != nil
}
