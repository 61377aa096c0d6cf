package scheduler

// Container scopes and paths shared by the fleet manager, dispatcher and
// completion watcher. These are part of the worker contract.
const (
	coderContainer    = "miniapp-factory-coder"
	imagegenContainer = "miniapp-factory-imagegen"

	coderScope    = "container:" + coderContainer
	imagegenScope = "container:" + imagegenContainer

	coderDataDir    = "/var/lib/" + coderContainer
	imagegenDataDir = "/var/lib/" + imagegenContainer

	coderAssignmentFile    = coderDataDir + "/assignment.json"
	imagegenAssignmentFile = imagegenDataDir + "/assignment.json"

	coderService       = coderContainer + ".service"
	imagegenService    = imagegenContainer + ".service"
	ollamaService      = "ollama.service"
	modelLoaderService = "ollama-model-loader.service"
	comfyuiService     = "comfyui.service"

	coderChatLog   = coderDataDir + "/chat.log"
	imagegenRunLog = imagegenDataDir + "/comfyui.log"

	containerNetwork = "containernet"
)

// coderFlake configures the code generation container on a worker VM.
const coderFlake = `{
  inputs = {
    xnode-manager.url = "github:Openmesh-Network/xnode-manager";
    miniapp-factory-coder.url = "github:OpenxAI-Network/miniapp-factory-coder";
    nixpkgs.follows = "miniapp-factory-coder/nixpkgs";
  };

  nixConfig = {
    extra-substituters = [
      "https://openxai.cachix.org"
      "https://nix-community.cachix.org"
      "https://cuda-maintainers.cachix.org"
    ];
    extra-trusted-public-keys = [
      "openxai.cachix.org-1:3evd2khRVc/2NiGwVmypAF4VAklFmOpMuNs1K28bMQE="
      "nix-community.cachix.org-1:mB9FSh9qf2dCimDSUo8Zy7bkq5CX+/rkCWyvRCYg3Fs="
      "cuda-maintainers.cachix.org-1:0dq3bujKpuEPMCX6U4WylrUDZ9JyUG0VpVZa7CNfq5E="
    ];
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
        inputs.miniapp-factory-coder.nixosModules.default
        (
          { pkgs, ... }@args:
          {
            services.miniapp-factory-coder.enable = true;

            services.ollama.acceleration = "cuda";
            hardware.graphics = {
              enable = true;
              extraPackages = [
                pkgs.nvidia-vaapi-driver
              ];
            };
            hardware.nvidia.open = true;
            services.xserver.videoDrivers = [ "nvidia" ];
          }
        )
      ];
    };
  };
}`

// imagegenFlake configures the image generation container on a worker VM.
const imagegenFlake = `{
  inputs = {
    xnode-manager.url = "github:Openmesh-Network/xnode-manager";
    miniapp-factory-imagegen.url = "github:OpenxAI-Network/miniapp-factory-imagegen";
    nixpkgs.follows = "miniapp-factory-imagegen/nixpkgs";
  };

  nixConfig = {
    extra-substituters = [
      "https://openxai.cachix.org"
      "https://nix-community.cachix.org"
      "https://cuda-maintainers.cachix.org"
    ];
    extra-trusted-public-keys = [
      "openxai.cachix.org-1:3evd2khRVc/2NiGwVmypAF4VAklFmOpMuNs1K28bMQE="
      "nix-community.cachix.org-1:mB9FSh9qf2dCimDSUo8Zy7bkq5CX+/rkCWyvRCYg3Fs="
      "cuda-maintainers.cachix.org-1:0dq3bujKpuEPMCX6U4WylrUDZ9JyUG0VpVZa7CNfq5E="
    ];
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
        inputs.miniapp-factory-imagegen.nixosModules.default
        (
          { pkgs, ... }@args:
          {
            services.miniapp-factory-imagegen.enable = true;

            hardware.graphics = {
              enable = true;
              extraPackages = [
                pkgs.nvidia-vaapi-driver
              ];
            };
            hardware.nvidia.open = true;
            services.xserver.videoDrivers = [ "nvidia" ];
          }
        )
      ];
    };
  };
}`

// workerInitialConfig is the NixOS fragment applied to a fresh worker VM at
// provisioning time, before any container exists.
const workerInitialConfig = `nixpkgs.config.allowUnfree = true;
hardware.graphics = { enable = true; extraPackages = [ pkgs.nvidia-vaapi-driver ]; };
hardware.nvidia.open = true;
services.xserver.videoDrivers = [ "nvidia" ];`
