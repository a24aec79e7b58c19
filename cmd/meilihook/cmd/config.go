package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/meilihook/configs"
	"github.com/Aman-CERP/meilihook/internal/config"
	"github.com/Aman-CERP/meilihook/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user and project configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/meilihook/config.yaml)
  3. Project config (.meilihook.yaml)
  4. Environment variables (MEILIHOOK_*)`,
		Example: `  # Create user config from template
  meilihook config init

  # Create a project config in the current directory
  meilihook config init --project

  # Show effective configuration with the API key masked
  meilihook config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		Long: `Write the user configuration template to ~/.config/meilihook/config.yaml
(or $XDG_CONFIG_HOME/meilihook/config.yaml), or with --project the project
template to .meilihook.yaml in --dir.

An existing file is kept unless --force is given; with --force it is backed up
first. Up to 3 backups are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, project)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Write the project file instead of the user file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging all sources. The API key is masked.

Sources:
  merged    defaults + user + project + env (default)
  defaults  hardcoded defaults only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged or defaults")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), configPath(project))
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Print the project file path")
	return cmd
}

func newConfigRestoreCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the newest configuration backup",
		Long: `Replace the configuration file with its newest backup. The current file is
backed up first, so a restore can itself be undone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigRestore(cmd, project)
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Restore the project file instead of the user file")
	return cmd
}

func configPath(project bool) string {
	if project {
		return filepath.Join(projectDir, config.ProjectFile)
	}
	return config.GetUserConfigPath()
}

func runConfigInit(cmd *cobra.Command, force, project bool) error {
	out := output.New(cmd.OutOrStdout())

	path := configPath(project)
	template := configs.UserConfigTemplate
	if project {
		template = configs.ProjectConfigTemplate
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.KeyValue("Location", path)
			out.Status("", "Use --force to overwrite it (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
		out.KeyValue("Backup", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.KeyValue("Location", path)
	out.Status("", "Edit the file, then run 'meilihook check' to verify")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var cfg *config.Config
	switch source {
	case "merged":
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
	case "defaults":
		cfg = config.NewConfig()
	default:
		return fmt.Errorf("unknown source %q (use merged or defaults)", source)
	}

	redacted := cfg.Redacted()
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(redacted)
	}

	data, err := yaml.Marshal(redacted)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", source, data)
	return nil
}

func runConfigRestore(cmd *cobra.Command, project bool) error {
	out := output.New(cmd.OutOrStdout())

	path := configPath(project)
	backups, err := config.ListBackups(path)
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		out.Warning("No backups found")
		out.KeyValue("Location", path)
		return nil
	}

	if err := config.RestoreFile(path, backups[0]); err != nil {
		return err
	}
	out.Successf("Restored %s", path)
	out.KeyValue("From", backups[0])
	return nil
}
