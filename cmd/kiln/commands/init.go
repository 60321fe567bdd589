package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnproject/kiln/internal/cli/prompt"
	"github.com/kilnproject/kiln/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample kiln configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/kiln/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  kiln init

  # Initialize with custom path
  kiln init --config /etc/kiln/config.yaml

  # Force overwrite existing config
  kiln init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		ok, err := prompt.ConfirmWithForce(
			fmt.Sprintf("Configuration file %s already exists. Overwrite?", configPath),
			initForce,
		)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
		if !ok {
			fmt.Println("Keeping existing configuration file.")
			return nil
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to point at your template directories")
	fmt.Println("  2. Start the server with: kiln serve")
	fmt.Printf("  3. Or specify custom config: kiln serve --config %s\n", configPath)

	return nil
}
