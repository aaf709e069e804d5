package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vargulf/hvseed/internal/config"
	"github.com/vargulf/hvseed/internal/extract"
	"github.com/vargulf/hvseed/internal/hyperv"
	"github.com/vargulf/hvseed/internal/store"
	"github.com/vargulf/hvseed/internal/store/s3store"
	"github.com/vargulf/hvseed/internal/store/sharepoint"
	"github.com/vargulf/hvseed/internal/workflow"
	"github.com/vargulf/hvseed/utils"
)

var (
	configPath string
	vmNameFlag string
	debug      bool
)

var HvseedVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "hvseed",
	Short:   "hvseed provisions a Hyper-V VM from a multi-part disk image in a remote document library",
	Version: HvseedVersion,
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		settings, err := config.Load(configPath)
		if err != nil {
			utils.PrintError("Failed to load settings: " + err.Error())
			os.Exit(1)
		}
		if vmNameFlag != "" {
			settings.VMName = vmNameFlag
		}
		if err := settings.Validate(); err != nil {
			utils.PrintError("Invalid settings: " + err.Error())
			os.Exit(1)
		}
		if err := runProvision(settings); err != nil {
			utils.PrintError(err.Error())
			os.Exit(1)
		}
	},
}

// runProvision drives one provisioning attempt. The transcript is attached
// before any stage collaborator is constructed so every stage logger tees
// into it, and its file handle closes on every return path.
func runProvision(settings config.Settings) error {
	runID := uuid.NewString()

	transcriptPath := filepath.Join(filepath.Dir(settings.TempDir), fmt.Sprintf("hvseed-%s.log", runID))
	transcript, err := os.Create(transcriptPath)
	if err != nil {
		utils.PrintWarning("Could not open transcript file, continuing without one")
	} else {
		defer transcript.Close()
		utils.AttachTranscript(transcript)
		utils.PrintDetail("Transcript: " + transcriptPath)
	}

	hypervisor, err := hyperv.New()
	if err != nil {
		return fmt.Errorf("Hyper-V interface unavailable: %w", err)
	}

	deps := workflow.Deps{
		Connect:    connectFunc(settings),
		Pick:       utils.PromptSelect,
		Extractor:  &extract.Archiver{Path: settings.ArchiverPath},
		Hypervisor: hypervisor,
	}
	runner := workflow.New(settings, deps, runID)

	if err := runner.Run(context.Background()); err != nil {
		return err
	}
	if report := runner.Report; report != nil {
		utils.RenderPropertyTable("VM provisioned", [][]string{
			{"Name", report.Name},
			{"State", report.State},
			{"Generation", strconv.Itoa(report.Generation)},
			{"Memory", utils.FormatBytes(uint64(report.MemoryStartupBytes))},
			{"Processors", strconv.Itoa(report.ProcessorCount)},
		})
	}
	utils.PrintSuccess("Provisioning complete")
	return nil
}

// connectFunc is the authenticator stage: it yields a store bound to a
// live bearer credential (REST variant) or an implicit session (connector
// variant), depending on which store is configured.
func connectFunc(settings config.Settings) func(ctx context.Context) (store.Store, error) {
	if settings.Store == config.StoreS3 {
		return func(ctx context.Context) (store.Store, error) {
			return s3store.NewClient(ctx, settings.S3Bucket)
		}
	}
	return func(ctx context.Context) (store.Store, error) {
		token, err := sharepoint.TokenForSite(ctx, settings.SiteURL, settings.TokenFile)
		if err != nil {
			return nil, err
		}
		return sharepoint.NewClient(settings.SiteURL, token, utils.CreateHTTPClient(3*time.Minute, 90*time.Second))
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML settings file overriding the built-in defaults")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVarP(&vmNameFlag, "name", "n", "", "VM name (overrides deriving the name from the chosen folder)")
}
