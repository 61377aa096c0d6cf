package repohost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OpenxAI-Network/miniapp-factory/internal/config"
)

// GitHub hosts project repositories under one organisation, generated from a
// template repository.
type GitHub struct {
	cfg        config.RepoHostConfig
	httpClient *http.Client
}

// NewGitHub creates a GitHub repo host.
func NewGitHub(cfg config.RepoHostConfig) *GitHub {
	return &GitHub{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github returned %d: %s", e.status, e.body)
}

type generateRepoRequest struct {
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

// CreateRepo generates a public repository from the template.
func (g *GitHub) CreateRepo(ctx context.Context, name string) error {
	template := strings.TrimPrefix(g.cfg.Template, "github.com/")
	path := "/repos/" + template + "/generate"
	body := generateRepoRequest{Owner: g.cfg.Owner, Name: name, Private: false}

	if err := g.do(ctx, http.MethodPost, path, &body); err != nil {
		return fmt.Errorf("failed to create repo %s: %w", name, err)
	}
	return nil
}

// DeleteRepo removes the project's repository. Missing repositories are not
// an error; reset must be retryable.
func (g *GitHub) DeleteRepo(ctx context.Context, name string) error {
	path := "/repos/" + g.cfg.Owner + "/" + name

	err := g.do(ctx, http.MethodDelete, path, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete repo %s: %w", name, err)
	}
	return nil
}

func (g *GitHub) do(ctx context.Context, method, path string, body any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return &apiError{status: resp.StatusCode, body: string(respBody)}
	}
	return nil
}

// Compile-time check to ensure GitHub implements RepoHost.
var _ RepoHost = (*GitHub)(nil)
