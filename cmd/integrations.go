package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/socialagent/internal/config"
	"github.com/nextlevelbuilder/socialagent/internal/integrations"
	"github.com/nextlevelbuilder/socialagent/internal/integrations/federatedchat"
	"github.com/nextlevelbuilder/socialagent/internal/integrations/socialnetwork"
)

func integrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Manage platform integrations (federated_chat, social_network)",
	}
	cmd.AddCommand(integrationsListCmd())
	cmd.AddCommand(integrationsAddCmd())
	cmd.AddCommand(integrationsRemoveCmd())
	cmd.AddCommand(integrationsTestCmd())
	return cmd
}

func integrationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured integrations and whether they're enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Printf("federated_chat  enabled=%-5v homeserver=%s\n", cfg.FederatedChat.Enabled, cfg.FederatedChat.HomeserverURL)
			fmt.Printf("social_network  enabled=%-5v hub_api=%s\n", cfg.SocialNetwork.Enabled, cfg.SocialNetwork.HubAPIURL)
			return nil
		},
	}
}

func integrationsAddCmd() *cobra.Command {
	var homeserverURL, userID, hubAPIURL string
	var fid int64

	cmd := &cobra.Command{
		Use:   "add [federated_chat|social_network]",
		Short: "Enable an integration and persist its non-secret settings to the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			switch args[0] {
			case "federated_chat":
				cfg.FederatedChat.Enabled = true
				if homeserverURL != "" {
					cfg.FederatedChat.HomeserverURL = homeserverURL
				}
				if userID != "" {
					cfg.FederatedChat.UserID = userID
				}
			case "social_network":
				cfg.SocialNetwork.Enabled = true
				if hubAPIURL != "" {
					cfg.SocialNetwork.HubAPIURL = hubAPIURL
				}
				if fid != 0 {
					cfg.SocialNetwork.FID = fid
				}
			default:
				return fmt.Errorf("unknown integration %q, want federated_chat or social_network", args[0])
			}
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("%s enabled; secrets (tokens/API keys) must be set via environment variables\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&homeserverURL, "homeserver-url", "", "federated_chat homeserver URL")
	cmd.Flags().StringVar(&userID, "user-id", "", "federated_chat bot user ID")
	cmd.Flags().StringVar(&hubAPIURL, "hub-api-url", "", "social_network hub API URL")
	cmd.Flags().Int64Var(&fid, "fid", 0, "social_network bot account FID")
	return cmd
}

func integrationsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [federated_chat|social_network]",
		Short: "Disable an integration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			switch args[0] {
			case "federated_chat":
				cfg.FederatedChat.Enabled = false
			case "social_network":
				cfg.SocialNetwork.Enabled = false
			default:
				return fmt.Errorf("unknown integration %q, want federated_chat or social_network", args[0])
			}
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("%s disabled\n", args[0])
			return nil
		},
	}
}

func integrationsTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test [federated_chat|social_network]",
		Short: "Run an enabled integration's connectivity self-check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			switch args[0] {
			case "federated_chat":
				if !cfg.FederatedChat.Enabled {
					return fmt.Errorf("federated_chat is not enabled")
				}
				fc := federatedchat.New(federatedchat.Config{
					HomeserverURL: cfg.FederatedChat.HomeserverURL,
					UserID:        cfg.FederatedChat.UserID,
					AccessToken:   cfg.FederatedChat.AccessToken,
				}, nil)
				return printTestResult("federated_chat", fc.TestConnection(cmd.Context()))
			case "social_network":
				if !cfg.SocialNetwork.Enabled {
					return fmt.Errorf("social_network is not enabled")
				}
				sn := socialnetwork.New(socialnetwork.Config{
					HubAPIURL: cfg.SocialNetwork.HubAPIURL,
					APIKey:    cfg.SocialNetwork.APIKey,
					FID:       cfg.SocialNetwork.FID,
				}, nil)
				return printTestResult("social_network", sn.TestConnection(cmd.Context()))
			default:
				return fmt.Errorf("unknown integration %q, want federated_chat or social_network", args[0])
			}
		},
	}
}

func printTestResult(name string, res integrations.TestResult) error {
	if res.Success {
		fmt.Printf("%s: ok\n", name)
		return nil
	}
	return fmt.Errorf("%s: %s", name, res.Error)
}
