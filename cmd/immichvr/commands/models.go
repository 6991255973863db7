package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Papyszoo/ImmichVR-sub001/internal/cli/output"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/apiclient"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage AI models (list, download, load, unload)",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the model catalog and the currently loaded model",
	RunE:  runModelsList,
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <key>",
	Short: "Download a model's weights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := apiclient.New(GetServerURL())
		if err := client.DownloadModel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Download started for model %s (progress streams over the websocket)\n", args[0])
		return nil
	},
}

var modelsLoadCmd = &cobra.Command{
	Use:   "load <key>",
	Short: "Load a model into memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := apiclient.New(GetServerURL())
		runtime, err := client.LoadModel(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Model %s loaded\n", runtime.CurrentModelKey)
		return nil
	},
}

var modelsUnloadCmd = &cobra.Command{
	Use:   "unload <key>",
	Short: "Evict a model from memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := apiclient.New(GetServerURL())
		if err := client.UnloadModel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Model %s unloaded\n", args[0])
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsLoadCmd)
	modelsCmd.AddCommand(modelsUnloadCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	client := apiclient.New(GetServerURL())

	list, err := client.ListModels()
	if err != nil {
		return err
	}

	table := output.NewTableData("KEY", "NAME", "KIND", "PARAMS", "VRAM", "STATUS", "LOADED")
	for _, model := range list.Models {
		status := model.DownloadStatus
		if status == "downloading" {
			status = fmt.Sprintf("downloading (%d%%)", model.DownloadProgress)
		}
		loaded := ""
		if model.Key == list.Runtime.CurrentModelKey {
			loaded = "yes"
		}
		table.AddRow(model.Key, model.Name, model.Kind, model.Parameters, model.VRAMEstimate, status, loaded)
	}
	return output.PrintTable(os.Stdout, table)
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change orchestrator preferences",
	RunE:  runSettingsShow,
}

var (
	settingsModelKey     string
	settingsAutoGenerate string
)

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change preferences",
	Long: `Change orchestrator preferences.

Examples:
  # Change the default model
  immichvr settings set --default-model base

  # Enable generation when an asset is first viewed
  immichvr settings set --auto-generate true`,
	RunE: runSettingsSet,
}

func init() {
	settingsSetCmd.Flags().StringVar(&settingsModelKey, "default-model", "", "Default model key for new jobs")
	settingsSetCmd.Flags().StringVar(&settingsAutoGenerate, "auto-generate", "", "Generate artifacts when an asset is viewed (true/false)")
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	client := apiclient.New(GetServerURL())

	settings, err := client.GetSettings()
	if err != nil {
		return err
	}
	fmt.Printf("Default model:         %s\n", settings.DefaultModelKey)
	fmt.Printf("Auto-generate on view: %t\n", settings.AutoGenerateOnView)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	client := apiclient.New(GetServerURL())

	current, err := client.GetSettings()
	if err != nil {
		return err
	}

	req := &apiclient.UpdateSettingsRequest{
		DefaultModelKey:    current.DefaultModelKey,
		AutoGenerateOnView: current.AutoGenerateOnView,
	}
	if settingsModelKey != "" {
		req.DefaultModelKey = settingsModelKey
	}
	if settingsAutoGenerate != "" {
		enabled, err := strconv.ParseBool(settingsAutoGenerate)
		if err != nil {
			return fmt.Errorf("invalid --auto-generate value %q: expected true or false", settingsAutoGenerate)
		}
		req.AutoGenerateOnView = enabled
	}

	updated, err := client.UpdateSettings(req)
	if err != nil {
		return err
	}
	fmt.Printf("Default model:         %s\n", updated.DefaultModelKey)
	fmt.Printf("Auto-generate on view: %t\n", updated.AutoGenerateOnView)
	return nil
}
