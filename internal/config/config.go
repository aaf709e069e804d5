package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	StoreSharePoint = "sharepoint"
	StoreS3         = "s3"
)

// Settings is the immutable run configuration. It is constructed once at
// startup and passed by reference into each stage.
type Settings struct {
	SiteURL        string `yaml:"siteUrl"`
	LibraryPath    string `yaml:"libraryPath"`
	TempDir        string `yaml:"tempDir"`
	ArchiverPath   string `yaml:"archiverPath"`
	MemoryBytes    int64  `yaml:"memoryBytes"`
	SwitchName     string `yaml:"switchName"`
	ProcessorCount int    `yaml:"processorCount"`
	// VMName, when set, selects the fixed-name variant; otherwise the name
	// is derived from the chosen folder.
	VMName    string `yaml:"vmName"`
	Store     string `yaml:"store"`
	S3Bucket  string `yaml:"s3Bucket"`
	S3Prefix  string `yaml:"s3Prefix"`
	TokenFile string `yaml:"tokenFile"`
}

func Default() Settings {
	return Settings{
		SiteURL:        "https://contoso.sharepoint.com/sites/lab",
		LibraryPath:    "/sites/lab/Shared Documents/VMImages",
		TempDir:        filepath.Join(os.TempDir(), "hvseed-work"),
		ArchiverPath:   `C:\Program Files\7-Zip\7z.exe`,
		MemoryBytes:    4 * 1024 * 1024 * 1024,
		SwitchName:     "Default Switch",
		ProcessorCount: 2,
		Store:          StoreSharePoint,
		TokenFile:      ".hvseed-token.json",
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (Settings, error) {
	settings := Default()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("error reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("error parsing settings file: %w", err)
	}
	return settings, nil
}

func (s Settings) Validate() error {
	switch s.Store {
	case StoreSharePoint:
		parsed, err := url.Parse(s.SiteURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid site URL %q", s.SiteURL)
		}
		if s.LibraryPath == "" {
			return fmt.Errorf("library path must not be empty")
		}
	case StoreS3:
		if s.S3Bucket == "" {
			return fmt.Errorf("s3 bucket must not be empty")
		}
	default:
		return fmt.Errorf("unknown store kind %q", s.Store)
	}
	if s.TempDir == "" {
		return fmt.Errorf("temp directory must not be empty")
	}
	if s.ArchiverPath == "" {
		return fmt.Errorf("archiver path must not be empty")
	}
	if s.MemoryBytes < 32*1024*1024 {
		return fmt.Errorf("memory size %d is below the 32 MiB minimum", s.MemoryBytes)
	}
	if s.ProcessorCount < 1 {
		return fmt.Errorf("processor count must be at least 1")
	}
	if s.SwitchName == "" {
		return fmt.Errorf("switch name must not be empty")
	}
	return nil
}
