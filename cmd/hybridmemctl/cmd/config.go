package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hybridmem/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/hybridmem/config.yaml)
  3. Project config (.hybridmem.yaml)
  4. Environment variables (HYBRIDMEM_*)`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration, backing up the previous file first")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	w := cmd.OutOrStdout()
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			fmt.Fprintf(w, "user configuration already exists at %s (use --force to upgrade)\n", configPath)
			return nil
		}
		if _, err := config.BackupUserConfig(); err != nil {
			return fmt.Errorf("backup existing config: %w", err)
		}
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	cfg := config.NewConfig()
	if err := cfg.WriteYAML(configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(w, "created user configuration at %s\n", configPath)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	fmt.Fprintf(w, "Store:\n")
	fmt.Fprintf(w, "  data_dir:     %s\n", cfg.Store.DataDir)
	fmt.Fprintf(w, "  bm25_backend: %s\n", cfg.Store.BM25Backend)
	fmt.Fprintf(w, "Embeddings:\n")
	fmt.Fprintf(w, "  provider: %s\n", cfg.Embeddings.Provider)
	fmt.Fprintf(w, "  model:    %s\n", cfg.Embeddings.Model)
	fmt.Fprintf(w, "Retrieval:\n")
	fmt.Fprintf(w, "  mode:   %s\n", cfg.Retrieval.Mode)
	fmt.Fprintf(w, "  rerank: %s\n", cfg.Retrieval.Rerank)
	fmt.Fprintf(w, "Scopes:\n")
	fmt.Fprintf(w, "  default:     %s\n", cfg.Scopes.Default)
	fmt.Fprintf(w, "  definitions: %v\n", cfg.Scopes.Definitions)
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}
