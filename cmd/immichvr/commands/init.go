package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample orchestrator configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/immichvr/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  immichvr init

  # Initialize with custom path
  immichvr init --config /etc/immichvr/config.yaml

  # Force overwrite existing config
  immichvr init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to point at your inference service and library")
	fmt.Println("  2. Start the server with: immichvr start")
	fmt.Printf("  3. Or specify custom config: immichvr start --config %s\n", configPath)

	return nil
}
