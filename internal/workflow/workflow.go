// Package workflow runs the provisioning sequence: authenticate, browse,
// download, extract, provision, and a cleanup pass that executes on every
// exit path.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vargulf/hvseed/internal/config"
	"github.com/vargulf/hvseed/internal/extract"
	"github.com/vargulf/hvseed/internal/hyperv"
	"github.com/vargulf/hvseed/internal/store"
	"github.com/vargulf/hvseed/utils"
)

type Extractor interface {
	Run(ctx context.Context, firstSegment string, outDir string) error
}

type Hypervisor interface {
	CheckElevated(ctx context.Context) (bool, error)
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, spec hyperv.VMSpec) error
	SetProcessorCount(ctx context.Context, name string, count int) error
	Get(ctx context.Context, name string) (*hyperv.VMInfo, error)
}

// Picker blocks until the operator chooses one option or cancels.
type Picker func(header string, options []string) (int, error)

// Deps are the stage collaborators, narrow enough to fault-inject in tests.
// Connect is the authenticator: it yields a store bound to a live
// credential or session.
type Deps struct {
	Connect    func(ctx context.Context) (store.Store, error)
	Pick       Picker
	Extractor  Extractor
	Hypervisor Hypervisor
}

// Runner threads the few mutable cross-stage values (resolved VM name, run
// identity, final report) through the otherwise immutable settings.
type Runner struct {
	Settings config.Settings
	Deps     Deps

	RunID     string
	StartTime time.Time
	VMName    string
	Report    *hyperv.VMInfo

	log         zerolog.Logger
	cleanupDone bool
}

// New builds a runner for one provisioning attempt. The caller may supply
// the run identity, so artifacts named before construction (the transcript
// file) share it; an empty runID gets a fresh one.
func New(settings config.Settings, deps Deps, runID string) *Runner {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Runner{
		Settings:  settings,
		Deps:      deps,
		RunID:     runID,
		StartTime: time.Now(),
		VMName:    settings.VMName,
		log:       utils.GetLogger("workflow"),
	}
}

// Run executes the stages strictly forward; the first failure aborts the
// remainder and falls through to cleanup. Cleanup never masks the stage
// error.
func (r *Runner) Run(ctx context.Context) (err error) {
	r.log = r.log.With().Str("run", r.RunID).Logger()
	defer r.cleanup(ctx)

	if err = r.precondition(ctx); err != nil {
		return err
	}
	remote, err := r.connect(ctx)
	if err != nil {
		return err
	}
	files, err := r.browse(ctx, remote)
	if err != nil {
		return err
	}
	if err = r.download(ctx, remote, files); err != nil {
		return err
	}
	diskImage, err := r.extract(ctx)
	if err != nil {
		return err
	}
	if err = r.provision(ctx, diskImage); err != nil {
		return err
	}
	return nil
}

func (r *Runner) precondition(ctx context.Context) error {
	if _, err := os.Stat(r.Settings.ArchiverPath); err != nil {
		return failf(KindPrecondition, "archiver executable not found at %s", r.Settings.ArchiverPath)
	}
	elevated, err := r.Deps.Hypervisor.CheckElevated(ctx)
	if err != nil {
		return failf(KindPrecondition, "elevation check failed: %v", err)
	}
	if !elevated {
		return failf(KindPrecondition, "administrative rights are required")
	}
	if err := os.MkdirAll(r.Settings.TempDir, 0755); err != nil {
		return failf(KindPrecondition, "could not create temp directory: %v", err)
	}
	r.log.Info().Str("tempDir", r.Settings.TempDir).Msg("Preconditions satisfied")
	return nil
}

func (r *Runner) connect(ctx context.Context) (store.Store, error) {
	r.log.Info().Str("store", r.Settings.Store).Msg("Authenticating to remote store")
	remote, err := r.Deps.Connect(ctx)
	if err != nil {
		return nil, failf(KindAuth, "could not authenticate: %v", err)
	}
	r.log.Info().Msg("Authentication complete")
	return remote, nil
}

func (r *Runner) browse(ctx context.Context, remote store.Store) ([]store.File, error) {
	root := r.browseRoot()
	folders, err := remote.ListFolders(ctx, root)
	if err != nil {
		return nil, failf(KindSelection, "could not list folders under %s: %v", root, err)
	}
	if len(folders) == 0 {
		return nil, failf(KindSelection, "no folders found under %s", root)
	}

	names := make([]string, len(folders))
	for i, folder := range folders {
		names[i] = folder.Name
	}
	choice, err := r.Deps.Pick("Select an image folder", names)
	if err != nil {
		return nil, failf(KindSelection, "folder selection cancelled")
	}
	chosen := folders[choice].Name
	r.log.Info().Str("folder", chosen).Msg("Folder selected")

	if r.VMName == "" {
		r.VMName = utils.SanitizeVMName(chosen)
		if r.VMName == "" {
			return nil, failf(KindSelection, "folder name %q yields an empty VM name", chosen)
		}
	}
	r.log.Info().Str("vmName", r.VMName).Msg("VM name resolved")

	folderPath := path.Join(root, chosen)
	files, err := remote.ListFiles(ctx, folderPath)
	if err != nil {
		return nil, failf(KindListing, "could not list files under %s: %v", folderPath, err)
	}
	if len(files) == 0 {
		return nil, failf(KindListing, "no files found in %s", folderPath)
	}
	return files, nil
}

func (r *Runner) download(ctx context.Context, remote store.Store, files []store.File) error {
	for i, file := range files {
		r.log.Info().
			Int("file", i+1).
			Int("of", len(files)).
			Str("name", file.Name).
			Str("size", utils.FormatBytes(uint64(file.Size))).
			Msg("Downloading")
		localPath := filepath.Join(r.Settings.TempDir, file.Name)
		if err := remote.Download(ctx, file.RemoteLocation, localPath); err != nil {
			return failf(KindTransfer, "download of %s failed: %v", file.Name, err)
		}
	}
	r.log.Info().Int("count", len(files)).Msg("All downloads complete")
	return nil
}

func (r *Runner) extract(ctx context.Context) (string, error) {
	firstSegment, err := extract.FirstSegment(r.Settings.TempDir)
	if err != nil {
		return "", failf(KindExtraction, "segment search failed: %v", err)
	}
	if firstSegment == "" {
		return "", failf(KindExtraction, "no first archive segment found in %s", r.Settings.TempDir)
	}
	r.log.Info().Str("segment", filepath.Base(firstSegment)).Msg("Extracting archive")
	if err := r.Deps.Extractor.Run(ctx, firstSegment, r.Settings.TempDir); err != nil {
		return "", &StageError{Kind: KindExtraction, Err: fmt.Errorf("extraction failed: %w", err)}
	}
	diskImage, err := extract.DiskImage(r.Settings.TempDir)
	if err != nil {
		return "", failf(KindExtraction, "disk image search failed: %v", err)
	}
	if diskImage == "" {
		return "", failf(KindExtraction, "archiver succeeded but no disk image appeared in %s", r.Settings.TempDir)
	}
	r.log.Info().Str("diskImage", filepath.Base(diskImage)).Msg("Extraction complete")
	return diskImage, nil
}

func (r *Runner) provision(ctx context.Context, diskImage string) error {
	exists, err := r.Deps.Hypervisor.Exists(ctx, r.VMName)
	if err != nil {
		return failf(KindProvisioning, "could not query VM %s: %v", r.VMName, err)
	}
	if exists {
		return failf(KindProvisioning, "a VM named %s already exists", r.VMName)
	}

	spec := hyperv.VMSpec{
		Name:          r.VMName,
		MemoryBytes:   r.Settings.MemoryBytes,
		DiskImagePath: diskImage,
		SwitchName:    r.Settings.SwitchName,
	}
	r.log.Info().
		Str("vmName", spec.Name).
		Str("memory", utils.FormatBytes(uint64(spec.MemoryBytes))).
		Str("switch", spec.SwitchName).
		Msg("Creating VM")
	if err := r.Deps.Hypervisor.Create(ctx, spec); err != nil {
		return failf(KindProvisioning, "VM creation failed: %v", err)
	}
	if err := r.Deps.Hypervisor.SetProcessorCount(ctx, r.VMName, r.Settings.ProcessorCount); err != nil {
		return failf(KindProvisioning, "setting processor count failed: %v", err)
	}

	info, err := r.Deps.Hypervisor.Get(ctx, r.VMName)
	if err != nil {
		return failf(KindProvisioning, "could not read back VM %s: %v", r.VMName, err)
	}
	r.Report = info
	r.log.Info().
		Str("name", info.Name).
		Str("state", info.State).
		Int("generation", info.Generation).
		Str("memory", utils.FormatBytes(uint64(info.MemoryStartupBytes))).
		Int("processors", info.ProcessorCount).
		Msg("VM provisioned")
	return nil
}

// cleanup runs exactly once on every exit path. Success is inferred, not
// tracked: a disk image still present in the temp directory plus a VM of
// the resolved name counts as a completed run. On success only the archive
// segments and the disk image are removed; otherwise the whole temp
// directory is discarded.
func (r *Runner) cleanup(ctx context.Context) {
	if r.cleanupDone {
		return
	}
	r.cleanupDone = true

	if _, err := os.Stat(r.Settings.TempDir); err != nil {
		return
	}
	diskImage, _ := extract.DiskImage(r.Settings.TempDir)
	vmExists := false
	if r.VMName != "" {
		if exists, err := r.Deps.Hypervisor.Exists(ctx, r.VMName); err == nil {
			vmExists = exists
		}
	}

	if diskImage != "" && vmExists {
		segments, _ := extract.Segments(r.Settings.TempDir)
		for _, segment := range segments {
			if err := os.Remove(segment); err != nil {
				r.log.Warn().Err(err).Str("segment", filepath.Base(segment)).Msg("Could not remove archive segment")
			}
		}
		if err := os.Remove(diskImage); err != nil {
			r.log.Warn().Err(err).Str("diskImage", filepath.Base(diskImage)).Msg("Could not remove disk image")
		}
		r.log.Info().Msg("Cleanup complete, temp directory retained")
		return
	}

	if err := os.RemoveAll(r.Settings.TempDir); err != nil {
		r.log.Warn().Err(err).Msg("Could not remove temp directory")
		return
	}
	r.log.Info().Msg("Cleanup complete, temp directory removed")
}

func (r *Runner) browseRoot() string {
	if r.Settings.Store == config.StoreS3 {
		return r.Settings.S3Prefix
	}
	return r.Settings.LibraryPath
}
