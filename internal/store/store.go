// Package store defines the remote document-store surface the workflow
// depends on: folder listing, file listing, and byte download.
package store

import "context"

// Folder is a remote folder entry, transient to the browse stage.
type Folder struct {
	Name string
}

// File is one remote file produced by the listing call and consumed by the
// download stage.
type File struct {
	Name           string
	RemoteLocation string
	Size           int64
}

type Store interface {
	// ListFolders returns the immediate sub-folders of path.
	ListFolders(ctx context.Context, path string) ([]Folder, error)
	// ListFiles returns the files directly inside path, one level only.
	ListFiles(ctx context.Context, path string) ([]File, error)
	// Download streams the remote file to localPath, overwriting any
	// existing file of the same name.
	Download(ctx context.Context, remoteLocation string, localPath string) error
}
