package deployer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/OpenxAI-Network/miniapp-factory/internal/config"
)

const vmNamePrefix = "miniapp-factory-coder-"

// hyperstackHardware is the persisted handle for a Hyperstack VM.
type hyperstackHardware struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Hyperstack provisions GPU VMs through the Hyperstack Infrahub API.
type Hyperstack struct {
	cfg        config.HyperstackConfig
	httpClient *http.Client
}

// NewHyperstack creates a Hyperstack deployer.
func NewHyperstack(cfg config.HyperstackConfig) *Hyperstack {
	return &Hyperstack{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type createVMRequest struct {
	Name             string `json:"name"`
	EnvironmentName  string `json:"environment_name"`
	FlavorName       string `json:"flavor_name"`
	KeyName          string `json:"key_name"`
	Count            int    `json:"count"`
	AssignFloatingIP bool   `json:"assign_floating_ip"`
	UserData         string `json:"user_data,omitempty"`
}

type createVMResponse struct {
	Instances []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"instances"`
}

type getVMResponse struct {
	Instance struct {
		FloatingIP *string `json:"floating_ip"`
	} `json:"instance"`
}

// Deploy provisions one VM with a randomised name. The provisioning
// parameters are passed to the first boot through user data.
func (h *Hyperstack) Deploy(ctx context.Context, input DeployInput) (json.RawMessage, error) {
	suffix, err := randomSuffix(10)
	if err != nil {
		return nil, fmt.Errorf("failed to generate vm name: %w", err)
	}

	req := createVMRequest{
		Name:             vmNamePrefix + suffix,
		EnvironmentName:  h.cfg.Environment,
		FlavorName:       h.cfg.Flavor,
		KeyName:          h.cfg.KeyName,
		Count:            1,
		AssignFloatingIP: true,
		UserData:         renderUserData(input),
	}

	var resp createVMResponse
	if err := h.do(ctx, http.MethodPost, "/core/virtual-machines", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create vm: %w", err)
	}
	if len(resp.Instances) == 0 {
		return nil, fmt.Errorf("vm creation returned no instances")
	}

	hardware := hyperstackHardware{ID: resp.Instances[0].ID, Name: resp.Instances[0].Name}
	return json.Marshal(hardware)
}

// Undeploy tears the VM down.
func (h *Hyperstack) Undeploy(ctx context.Context, hardware json.RawMessage) error {
	hw, err := parseHardware(hardware)
	if err != nil {
		return err
	}

	path := "/core/virtual-machines/" + strconv.FormatInt(hw.ID, 10)
	if err := h.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete vm %s: %w", hw.Name, err)
	}
	return nil
}

// IPv4 resolves the VM's floating address. Returns a nil Addr while the
// address is still being allocated.
func (h *Hyperstack) IPv4(ctx context.Context, hardware json.RawMessage) (IPv4, error) {
	hw, err := parseHardware(hardware)
	if err != nil {
		return IPv4{}, err
	}

	var resp getVMResponse
	path := "/core/virtual-machines/" + strconv.FormatInt(hw.ID, 10)
	if err := h.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return IPv4{}, fmt.Errorf("failed to get vm %s: %w", hw.Name, err)
	}
	return IPv4{Supported: true, Addr: resp.Instance.FloatingIP}, nil
}

// Identify renders the handle for log lines.
func (h *Hyperstack) Identify(hardware json.RawMessage) string {
	hw, err := parseHardware(hardware)
	if err != nil {
		return string(hardware)
	}
	return fmt.Sprintf("%s (vm %d)", hw.Name, hw.ID)
}

func (h *Hyperstack) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api_key", h.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("hyperstack returned %d: %s", resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func parseHardware(hardware json.RawMessage) (hyperstackHardware, error) {
	var hw hyperstackHardware
	if err := json.Unmarshal(hardware, &hw); err != nil {
		return hw, fmt.Errorf("invalid hardware handle: %w", err)
	}
	return hw, nil
}

// renderUserData serialises the provisioning parameters into the first-boot
// environment consumed by the OS installer.
func renderUserData(input DeployInput) string {
	var b strings.Builder
	write := func(key string, value *string) {
		if value != nil {
			fmt.Fprintf(&b, "%s=%s\n", key, strconv.Quote(*value))
		}
	}
	write("XNODE_OWNER", input.XnodeOwner)
	write("XNODE_CONFIG", input.InitialConfig)
	write("DOMAIN", input.Domain)
	write("ACME_EMAIL", input.AcmeEmail)
	write("USER_PASSWD", input.UserPasswd)
	if input.Encrypted != nil {
		fmt.Fprintf(&b, "ENCRYPTED=%t\n", *input.Encrypted)
	}
	return b.String()
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = suffixAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// Compile-time check to ensure Hyperstack implements HardwareDeployer.
var _ HardwareDeployer = (*Hyperstack)(nil)
