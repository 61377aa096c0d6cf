// Package models contains the persisted entities of the factory control plane.
package models

import (
	"fmt"
	"regexp"
	"strings"
)

// projectNameRe matches lowercase DNS-label-like project names.
var projectNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?$`)

// ValidProjectName reports whether name is a valid project name.
func ValidProjectName(name string) bool {
	return projectNameRe.MatchString(name)
}

// AccountAssociation is the signed account association document attached to a
// project, stored verbatim as JSON.
type AccountAssociation struct {
	Header    string `json:"header"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// BaseBuild holds per-project build options, stored as JSON.
type BaseBuild struct {
	AllowedAddresses []string `json:"allowed_addresses"`
}

// Project is a user-owned mini app. The name doubles as the container name on
// the host node; the id doubles as the NFT token id.
type Project struct {
	ID                 int32               `json:"id"`
	Name               string              `json:"name"`
	Owner              string              `json:"owner"`
	AccountAssociation *AccountAssociation `json:"account_association,omitempty"`
	BaseBuild          *BaseBuild          `json:"base_build,omitempty"`
	Version            *string             `json:"version,omitempty"`
	NFTMint            *string             `json:"nft_mint,omitempty"`
}

// Network returns the container network the project is attached to on the
// host node.
func (p *Project) Network() string {
	return "containernet"
}

// Flake renders the Nix flake deployed for this project on the host node.
// The source input is pinned to Version when one is set; the account
// association and allowed addresses render as empty placeholders when absent.
func (p *Project) Flake() string {
	version := ""
	if p.Version != nil {
		version = "/" + *p.Version
	}

	header, payload, signature := "", "", ""
	if p.AccountAssociation != nil {
		header = p.AccountAssociation.Header
		payload = p.AccountAssociation.Payload
		signature = p.AccountAssociation.Signature
	}

	allowedAddresses := ""
	if p.BaseBuild != nil {
		quoted := make([]string, len(p.BaseBuild.AllowedAddresses))
		for i, addr := range p.BaseBuild.AllowedAddresses {
			quoted[i] = fmt.Sprintf("%q", addr)
		}
		allowedAddresses = strings.Join(quoted, " ")
	}

	return fmt.Sprintf(`{
  inputs = {
    xnode-manager.url = "github:Openmesh-Network/xnode-manager";
    xnode-miniapp-template.url = "github:miniapp-factory/%s%s";
    nixpkgs.follows = "xnode-miniapp-template/nixpkgs";
  };

  outputs = inputs: {
    nixosConfigurations.container = inputs.nixpkgs.lib.nixosSystem {
      specialArgs = {
        inherit inputs;
      };
      modules = [
        inputs.xnode-manager.nixosModules.container
        {
          services.xnode-container.xnode-config = {
            host-platform = ./xnode-config/host-platform;
            state-version = ./xnode-config/state-version;
            hostname = ./xnode-config/hostname;
          };
        }
        inputs.xnode-miniapp-template.nixosModules.default
        {
          services.xnode-miniapp-template.enable = true;
          services.xnode-miniapp-template.url = "https://%s.miniapp-factory.marketplace.openxai.network";
          services.xnode-miniapp-template.accountAssociation = {
            header = "%s";
            payload = "%s";
            signature = "%s";
          };
          services.xnode-miniapp-template.allowedAddresses = "%s";
        }
      ];
    };
  };
}`, p.Name, version, p.Name, header, payload, signature, allowedAddresses)
}
