// Package agent is a typed client for the node management agent running on
// worker VMs and the downstream host node. Every operation targets a scope,
// either "host" or "container:<name>". Sessions are cheap; callers create a
// fresh one per batch of operations and never cache them across ticks.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Signer authenticates the local process to an agent.
type Signer interface {
	// Address returns the local account in "eth:<40 hex>" form.
	Address() string
	// SignMessage signs keccak-256 of the message, returning 0x-prefixed hex.
	SignMessage(message string) (string, error)
}

// Session is an authenticated handle to one agent.
type Session struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type loginRequest struct {
	User      string `json:"user"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login performs the challenge/response handshake: the current wall-clock
// second is embedded in a fixed message, signed with the local key, and
// exchanged for a bearer token.
func Login(ctx context.Context, baseURL, domain string, signer Signer) (*Session, error) {
	t := time.Now().Unix()
	message := fmt.Sprintf("Xnode Auth authenticate %s at %d", domain, t)

	signature, err := signer.SignMessage(message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign login challenge: %w", err)
	}

	s := &Session{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	var resp loginResponse
	req := loginRequest{
		User:      signer.Address(),
		Signature: signature,
		Timestamp: strconv.FormatInt(t, 10),
	}
	if err := s.post(ctx, "/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s.token = resp.Token
	return s, nil
}

func (s *Session) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("agent returned %d: %s", resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func (s *Session) get(ctx context.Context, path string, result any) error {
	return s.doRequest(ctx, http.MethodGet, path, nil, result)
}

func (s *Session) post(ctx context.Context, path string, body, result any) error {
	return s.doRequest(ctx, http.MethodPost, path, body, result)
}

type requestIDResponse struct {
	RequestID uint32 `json:"request_id"`
}

// SetContainerConfig applies a container configuration and returns the id of
// the agent-side request tracking the rebuild.
func (s *Session) SetContainerConfig(ctx context.Context, container string, change ContainerChange) (uint32, error) {
	var resp requestIDResponse
	path := "/config/container/" + url.PathEscape(container)
	if err := s.post(ctx, path, change, &resp); err != nil {
		return 0, err
	}
	return resp.RequestID, nil
}

type createDirectoryRequest struct {
	MakeParent bool   `json:"make_parent"`
	Path       string `json:"path"`
}

// CreateDirectory creates a directory inside the scope.
func (s *Session) CreateDirectory(ctx context.Context, scope, path string, makeParent bool) error {
	body := createDirectoryRequest{MakeParent: makeParent, Path: path}
	return s.post(ctx, "/file/"+url.PathEscape(scope)+"/create-directory", body, nil)
}

type writeFileRequest struct {
	Path    string   `json:"path"`
	Content rawBytes `json:"content"`
}

// WriteFile writes content to a file inside the scope.
func (s *Session) WriteFile(ctx context.Context, scope, path string, content []byte) error {
	body := writeFileRequest{Path: path, Content: content}
	return s.post(ctx, "/file/"+url.PathEscape(scope)+"/write-file", body, nil)
}

type readFileResponse struct {
	Content FileContent `json:"content"`
}

// ReadFile reads a file inside the scope.
func (s *Session) ReadFile(ctx context.Context, scope, path string) (FileContent, error) {
	var resp readFileResponse
	reqPath := "/file/" + url.PathEscape(scope) + "/read-file?path=" + url.QueryEscape(path)
	if err := s.get(ctx, reqPath, &resp); err != nil {
		return FileContent{}, err
	}
	return resp.Content, nil
}

type setPermissionsRequest struct {
	Path        string       `json:"path"`
	Permissions []Permission `json:"permissions"`
}

// SetPermissions replaces the permission set of a file inside the scope.
func (s *Session) SetPermissions(ctx context.Context, scope, path string, permissions []Permission) error {
	body := setPermissionsRequest{Path: path, Permissions: permissions}
	return s.post(ctx, "/file/"+url.PathEscape(scope)+"/set-permissions", body, nil)
}

// Users lists the accounts of the scope.
func (s *Session) Users(ctx context.Context, scope string) ([]User, error) {
	var users []User
	if err := s.get(ctx, "/info/"+url.PathEscape(scope)+"/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Groups lists the groups of the scope.
func (s *Session) Groups(ctx context.Context, scope string) ([]Group, error) {
	var groups []Group
	if err := s.get(ctx, "/info/"+url.PathEscape(scope)+"/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListProcesses lists the running units of the scope.
func (s *Session) ListProcesses(ctx context.Context, scope string) ([]Process, error) {
	var processes []Process
	if err := s.get(ctx, "/process/"+url.PathEscape(scope), &processes); err != nil {
		return nil, err
	}
	return processes, nil
}

type executeProcessRequest struct {
	Command ProcessCommand `json:"command"`
}

// ExecuteProcess starts, restarts or stops a unit inside the scope.
func (s *Session) ExecuteProcess(ctx context.Context, scope, process string, command ProcessCommand) error {
	path := "/process/" + url.PathEscape(scope) + "/" + url.PathEscape(process)
	return s.post(ctx, path, executeProcessRequest{Command: command}, nil)
}

type requestInfoResponse struct {
	Result *RequestResult `json:"result"`
}

// RequestInfo polls the outcome of a tracked request. A nil result means the
// request is still in flight.
func (s *Session) RequestInfo(ctx context.Context, requestID uint32) (*RequestResult, error) {
	var resp requestInfoResponse
	path := "/request/" + strconv.FormatUint(uint64(requestID), 10)
	if err := s.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SetOS applies a host-level OS change.
func (s *Session) SetOS(ctx context.Context, change OSChange) error {
	return s.post(ctx, "/os", change, nil)
}
