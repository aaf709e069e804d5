package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vargulf/hvseed/internal/config"
	"github.com/vargulf/hvseed/utils"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the scratch directory left by an interrupted run",
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := config.Load(configPath)
		if err != nil {
			utils.PrintError("Failed to load settings: " + err.Error())
			os.Exit(1)
		}
		if err := os.RemoveAll(settings.TempDir); err != nil {
			utils.PrintError("Error cleaning up temporary files")
			os.Exit(1)
		}
		utils.PrintSuccess("Temporary files cleaned up")
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
