package scheduler

import (
	"context"
	"fmt"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// LiveOutput reads the log of the stage currently running for a deployment
// on its assigned worker: the coder chat log while coding, the comfyui log
// while generating images.
func LiveOutput(ctx context.Context, sessions Sessions, worker *models.Worker, dep *models.Deployment) (string, error) {
	scope, file := coderScope, coderChatLog
	if dep.CodingFinishedAt != nil {
		scope, file = imagegenScope, imagegenRunLog
	}

	session, err := sessions.Worker(ctx, worker)
	if err != nil {
		return "", fmt.Errorf("failed to open worker session: %w", err)
	}

	content, err := session.ReadFile(ctx, scope, file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}
	return content.Text()
}
