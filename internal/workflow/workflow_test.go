package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vargulf/hvseed/internal/config"
	"github.com/vargulf/hvseed/internal/extract"
	"github.com/vargulf/hvseed/internal/hyperv"
	"github.com/vargulf/hvseed/internal/store"
)

type fakeStore struct {
	folders    []store.Folder
	files      []store.File
	foldersErr error
	filesErr   error
	failOn     string
	downloaded []string
}

func (f *fakeStore) ListFolders(ctx context.Context, path string) ([]store.Folder, error) {
	return f.folders, f.foldersErr
}

func (f *fakeStore) ListFiles(ctx context.Context, path string) ([]store.File, error) {
	return f.files, f.filesErr
}

func (f *fakeStore) Download(ctx context.Context, remoteLocation string, localPath string) error {
	if filepath.Base(localPath) == f.failOn {
		return errors.New("connection reset")
	}
	if err := os.WriteFile(localPath, []byte("segment-bytes"), 0644); err != nil {
		return err
	}
	f.downloaded = append(f.downloaded, filepath.Base(localPath))
	return nil
}

type fakeExtractor struct {
	err       error
	diskName  string
	runCalled int
}

func (f *fakeExtractor) Run(ctx context.Context, firstSegment string, outDir string) error {
	f.runCalled++
	if f.err != nil {
		return f.err
	}
	if f.diskName != "" {
		return os.WriteFile(filepath.Join(outDir, f.diskName), []byte("vhdx-bytes"), 0644)
	}
	return nil
}

type fakeHypervisor struct {
	elevated    bool
	existing    map[string]bool
	existsErr   error
	createErr   error
	setCPUErr   error
	getErr      error
	created     []hyperv.VMSpec
	cpuSet      map[string]int
	existsCalls int
}

func (f *fakeHypervisor) CheckElevated(ctx context.Context) (bool, error) {
	return f.elevated, nil
}

func (f *fakeHypervisor) Exists(ctx context.Context, name string) (bool, error) {
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[name], nil
}

func (f *fakeHypervisor) Create(ctx context.Context, spec hyperv.VMSpec) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, spec)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[spec.Name] = true
	return nil
}

func (f *fakeHypervisor) SetProcessorCount(ctx context.Context, name string, count int) error {
	if f.setCPUErr != nil {
		return f.setCPUErr
	}
	if f.cpuSet == nil {
		f.cpuSet = map[string]int{}
	}
	f.cpuSet[name] = count
	return nil
}

func (f *fakeHypervisor) Get(ctx context.Context, name string) (*hyperv.VMInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &hyperv.VMInfo{
		Name:               name,
		State:              "Off",
		Generation:         2,
		MemoryStartupBytes: 4 * 1024 * 1024 * 1024,
		ProcessorCount:     f.cpuSet[name],
	}, nil
}

type fixture struct {
	settings config.Settings
	store    *fakeStore
	extract  *fakeExtractor
	hv       *fakeHypervisor
	picked   int
	pickErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	archiver := filepath.Join(base, "7z")
	require.NoError(t, os.WriteFile(archiver, []byte("#!/bin/sh\n"), 0755))

	return &fixture{
		settings: config.Settings{
			SiteURL:        "https://contoso.sharepoint.com/sites/lab",
			LibraryPath:    "/sites/lab/Shared Documents/VMImages",
			TempDir:        filepath.Join(base, "work"),
			ArchiverPath:   archiver,
			MemoryBytes:    4 * 1024 * 1024 * 1024,
			SwitchName:     "Default Switch",
			ProcessorCount: 2,
			Store:          config.StoreSharePoint,
		},
		store: &fakeStore{
			folders: []store.Folder{{Name: "Win11Image"}},
			files: []store.File{
				{Name: "image.7z.001", RemoteLocation: "/lib/Win11Image/image.7z.001", Size: 100},
				{Name: "image.7z.002", RemoteLocation: "/lib/Win11Image/image.7z.002", Size: 100},
			},
		},
		extract: &fakeExtractor{diskName: "disk.vhdx"},
		hv:      &fakeHypervisor{elevated: true},
	}
}

func (f *fixture) runner() *Runner {
	return New(f.settings, Deps{
		Connect: func(ctx context.Context) (store.Store, error) { return f.store, nil },
		Pick: func(header string, options []string) (int, error) {
			if f.pickErr != nil {
				return 0, f.pickErr
			}
			return f.picked, nil
		},
		Extractor:  f.extract,
		Hypervisor: f.hv,
	}, "")
}

func TestNewKeepsSuppliedRunID(t *testing.T) {
	f := newFixture(t)
	r := New(f.settings, Deps{Hypervisor: f.hv}, "run-123")
	assert.Equal(t, "run-123", r.RunID)

	generated := New(f.settings, Deps{Hypervisor: f.hv}, "")
	assert.NotEmpty(t, generated.RunID)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t)
	r := f.runner()

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, "Win11Image", r.VMName)
	require.Len(t, f.hv.created, 1)
	assert.Equal(t, "Win11Image", f.hv.created[0].Name)
	assert.Equal(t, f.settings.MemoryBytes, f.hv.created[0].MemoryBytes)
	assert.Equal(t, "Default Switch", f.hv.created[0].SwitchName)
	assert.Equal(t, filepath.Join(f.settings.TempDir, "disk.vhdx"), f.hv.created[0].DiskImagePath)
	assert.Equal(t, 2, f.hv.cpuSet["Win11Image"])

	require.NotNil(t, r.Report)
	assert.Equal(t, 2, r.Report.Generation)

	// success-path cleanup: segments and disk image gone, directory kept
	assert.Empty(t, dirEntries(t, f.settings.TempDir))
}

func TestRunFixedNameVariant(t *testing.T) {
	f := newFixture(t)
	f.settings.VMName = "GoldenImage"
	f.store.folders = []store.Folder{{Name: "My VM! (2024)"}}
	r := f.runner()

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "GoldenImage", r.VMName)
}

func TestRunSelfNamingSanitizes(t *testing.T) {
	f := newFixture(t)
	f.store.folders = []store.Folder{{Name: "My VM! (2024)"}}
	r := f.runner()

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "MyVM2024", r.VMName)
}

func TestRunPreconditionMissingArchiver(t *testing.T) {
	f := newFixture(t)
	f.settings.ArchiverPath = filepath.Join(t.TempDir(), "missing-7z")
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindPrecondition, KindOf(err))
	assert.NoDirExists(t, f.settings.TempDir)
}

func TestRunPreconditionNotElevated(t *testing.T) {
	f := newFixture(t)
	f.hv.elevated = false
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestRunAuthFailure(t *testing.T) {
	f := newFixture(t)
	r := New(f.settings, Deps{
		Connect:    func(ctx context.Context) (store.Store, error) { return nil, errors.New("sign-in cancelled") },
		Pick:       func(string, []string) (int, error) { return 0, nil },
		Extractor:  f.extract,
		Hypervisor: f.hv,
	}, "")

	err := r.Run(context.Background())
	assert.Equal(t, KindAuth, KindOf(err))
	// failure-path cleanup removes the whole scratch directory
	assert.NoDirExists(t, f.settings.TempDir)
}

func TestRunNoFolders(t *testing.T) {
	f := newFixture(t)
	f.store.folders = nil
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindSelection, KindOf(err))
}

func TestRunSelectionCancelled(t *testing.T) {
	f := newFixture(t)
	f.pickErr = errors.New("cancelled")
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindSelection, KindOf(err))
	assert.NoDirExists(t, f.settings.TempDir)
}

func TestRunEmptySanitizedName(t *testing.T) {
	f := newFixture(t)
	f.store.folders = []store.Folder{{Name: "***"}}
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindSelection, KindOf(err))
}

func TestRunNoFiles(t *testing.T) {
	f := newFixture(t)
	f.store.files = nil
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindListing, KindOf(err))
}

func TestRunDownloadFailureDiscardsPartialSet(t *testing.T) {
	f := newFixture(t)
	f.store.failOn = "image.7z.002"
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindTransfer, KindOf(err))
	// the first, successfully downloaded segment is discarded too
	assert.Equal(t, []string{"image.7z.001"}, f.store.downloaded)
	assert.NoDirExists(t, f.settings.TempDir)
}

func TestRunMissingFirstSegmentSkipsExtraction(t *testing.T) {
	f := newFixture(t)
	f.store.files = []store.File{{Name: "readme.txt", RemoteLocation: "/lib/x/readme.txt"}}
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindExtraction, KindOf(err))
	assert.Zero(t, f.extract.runCalled)
}

func TestRunArchiverExitCode(t *testing.T) {
	f := newFixture(t)
	f.extract.err = &extract.ArchiverError{Code: 2}
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindExtraction, KindOf(err))
	var archiverErr *extract.ArchiverError
	require.ErrorAs(t, err, &archiverErr)
	assert.Equal(t, 2, archiverErr.Code)
	assert.Empty(t, f.hv.created)
}

func TestRunNoDiskImageAfterExtraction(t *testing.T) {
	f := newFixture(t)
	f.extract.diskName = ""
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindExtraction, KindOf(err))
	assert.NoDirExists(t, f.settings.TempDir)
}

func TestRunNameCollision(t *testing.T) {
	f := newFixture(t)
	f.hv.existing = map[string]bool{"Win11Image": true}
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindProvisioning, KindOf(err))
	assert.Empty(t, f.hv.created)
	assert.Empty(t, f.hv.cpuSet)
}

func TestRunCreateFailure(t *testing.T) {
	f := newFixture(t)
	f.hv.createErr = errors.New("switch not found")
	r := f.runner()

	err := r.Run(context.Background())
	assert.Equal(t, KindProvisioning, KindOf(err))
	assert.NoDirExists(t, f.settings.TempDir)
}

func TestCleanupRunsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	r := f.runner()
	require.NoError(t, r.Run(context.Background()))

	callsAfterRun := f.hv.existsCalls
	r.cleanup(context.Background())
	assert.Equal(t, callsAfterRun, f.hv.existsCalls)
}
