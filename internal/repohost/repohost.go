// Package repohost abstracts the source hosting service. Each project gets
// one public repository generated from the mini-app template; reset without a
// target deletes and regenerates it.
package repohost

import "context"

// RepoHost creates and deletes project source repositories.
type RepoHost interface {
	// CreateRepo generates a public repository for the project from the
	// configured template.
	CreateRepo(ctx context.Context, name string) error
	// DeleteRepo removes the project's repository.
	DeleteRepo(ctx context.Context, name string) error
}
