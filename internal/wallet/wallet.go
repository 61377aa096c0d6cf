// Package wallet holds the process-wide signing material: the secp256k1 key
// the factory authenticates to node agents with, and the SSH deploy key it
// pushes into worker containers. Both live under the data directory and are
// created on first boot.
package wallet

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ssh"
)

const (
	secretKeyFile = "secret.key"
	sshKeyFile    = ".ssh/id_ed25519"
)

// Wallet is the local identity. The private key is loaded once during boot
// and never mutated afterwards.
type Wallet struct {
	key     *ecdsa.PrivateKey
	dataDir string
}

// Load reads the secp256k1 key from <dataDir>/secret.key, generating and
// persisting a fresh one when the file does not exist. The file holds the
// 32 raw key bytes.
func Load(dataDir string) (*Wallet, error) {
	path := filepath.Join(dataDir, secretKeyFile)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		key, genErr := crypto.GenerateKey()
		if genErr != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", genErr)
		}
		if mkErr := os.MkdirAll(dataDir, 0o700); mkErr != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", mkErr)
		}
		if wrErr := os.WriteFile(path, crypto.FromECDSA(key), 0o600); wrErr != nil {
			return nil, fmt.Errorf("failed to persist signing key: %w", wrErr)
		}
		return &Wallet{key: key, dataDir: dataDir}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key at %s: %w", path, err)
	}
	return &Wallet{key: key, dataDir: dataDir}, nil
}

// Address returns the account identifier in owner encoding,
// "eth:" followed by the lowercase 40-hex address.
func (w *Wallet) Address() string {
	addr := crypto.PubkeyToAddress(w.key.PublicKey).Hex()
	return "eth:" + strings.ToLower(strings.TrimPrefix(addr, "0x"))
}

// SignMessage signs keccak-256 of the message and returns the signature as
// 0x-prefixed hex of r, s and v, with v adjusted to 27/28.
func (w *Wallet) SignMessage(message string) (string, error) {
	hash := crypto.Keccak256([]byte(message))
	signature, err := crypto.Sign(hash, w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	// crypto.Sign yields V as 0 or 1 at index 64
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}

// Key returns the raw private key, for transaction signing.
func (w *Wallet) Key() *ecdsa.PrivateKey {
	return w.key
}

// DeployKey reads the SSH private key pushed into worker containers,
// generating an ed25519 keypair under <dataDir>/.ssh on first use.
func (w *Wallet) DeployKey() ([]byte, error) {
	path := filepath.Join(w.dataDir, sshKeyFile)

	key, err := os.ReadFile(path)
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read deploy key: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate deploy key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("failed to encode deploy key: %w", err)
	}
	privatePEM := pem.EncodeToMemory(block)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deploy public key: %w", err)
	}
	publicBytes := ssh.MarshalAuthorizedKey(sshPub)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ssh directory: %w", err)
	}
	if err := os.WriteFile(path, privatePEM, 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist deploy key: %w", err)
	}
	if err := os.WriteFile(path+".pub", publicBytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to persist deploy public key: %w", err)
	}

	return privatePEM, nil
}
