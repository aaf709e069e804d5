package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/vargulf/hvseed/internal/config"
	"github.com/vargulf/hvseed/internal/store/s3store"
	"github.com/vargulf/hvseed/internal/store/sharepoint"
	"github.com/vargulf/hvseed/utils"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate to the remote store and cache the credential without provisioning",
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		settings, err := config.Load(configPath)
		if err != nil {
			utils.PrintError("Failed to load settings: " + err.Error())
			os.Exit(1)
		}
		if err := settings.Validate(); err != nil {
			utils.PrintError("Invalid settings: " + err.Error())
			os.Exit(1)
		}

		ctx := context.Background()
		if settings.Store == config.StoreS3 {
			if _, err := s3store.NewClient(ctx, settings.S3Bucket); err != nil {
				utils.PrintError("Session setup failed: " + err.Error())
				os.Exit(1)
			}
		} else {
			if _, err := sharepoint.TokenForSite(ctx, settings.SiteURL, settings.TokenFile); err != nil {
				utils.PrintError("Authentication failed: " + err.Error())
				os.Exit(1)
			}
		}
		utils.PrintSuccess("Authentication successful")
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
