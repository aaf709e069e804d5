// Package sharepoint is the REST binding of the document store: folder and
// file listings through GetFolderByServerRelativeUrl, downloads through
// GetFileByServerRelativeUrl('<path>')/$value, authenticated with a bearer
// token obtained interactively.
package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vargulf/hvseed/internal/store"
	"github.com/vargulf/hvseed/utils"
)

const bufferSize = 1024 * 1024 * 2 // 2MB buffer

type Client struct {
	site  string
	token string
	http  *http.Client
	log   zerolog.Logger
}

func NewClient(siteURL string, token string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", siteURL)
	}
	return &Client{
		site:  strings.TrimRight(siteURL, "/"),
		token: token,
		http:  httpClient,
		log:   utils.GetLogger("sharepoint"),
	}, nil
}

type folderEntry struct {
	Name              string `json:"Name"`
	ServerRelativeUrl string `json:"ServerRelativeUrl"`
}

type fileEntry struct {
	Name              string `json:"Name"`
	ServerRelativeUrl string `json:"ServerRelativeUrl"`
	Length            int64  `json:"Length"`
}

func (c *Client) ListFolders(ctx context.Context, path string) ([]store.Folder, error) {
	endpoint := fmt.Sprintf("%s/_api/web/GetFolderByServerRelativeUrl('%s')/Folders", c.site, escapePath(path))
	var listing struct {
		Value []folderEntry `json:"value"`
	}
	if err := c.apiGet(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("error listing folders under %s: %w", path, err)
	}
	folders := make([]store.Folder, 0, len(listing.Value))
	for _, entry := range listing.Value {
		folders = append(folders, store.Folder{Name: entry.Name})
	}
	c.log.Debug().Str("path", path).Int("count", len(folders)).Msg("Folder listing complete")
	return folders, nil
}

func (c *Client) ListFiles(ctx context.Context, path string) ([]store.File, error) {
	endpoint := fmt.Sprintf("%s/_api/web/GetFolderByServerRelativeUrl('%s')/Files", c.site, escapePath(path))
	var listing struct {
		Value []fileEntry `json:"value"`
	}
	if err := c.apiGet(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("error listing files under %s: %w", path, err)
	}
	files := make([]store.File, 0, len(listing.Value))
	for _, entry := range listing.Value {
		files = append(files, store.File{
			Name:           entry.Name,
			RemoteLocation: entry.ServerRelativeUrl,
			Size:           entry.Length,
		})
	}
	c.log.Debug().Str("path", path).Int("count", len(files)).Msg("File listing complete")
	return files, nil
}

func (c *Client) Download(ctx context.Context, remoteLocation string, localPath string) error {
	endpoint := fmt.Sprintf("%s/_api/web/GetFileByServerRelativeUrl('%s')/$value", c.site, escapePath(remoteLocation))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d downloading %s", resp.StatusCode, remoteLocation)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	tempOutputPath := localPath + ".part"
	outFile, err := os.OpenFile(tempOutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer outFile.Close()

	buffer := make([]byte, bufferSize)
	var total int64
	for {
		bytesRead, err := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				return fmt.Errorf("error writing to output file: %w", writeErr)
			}
			total += int64(bytesRead)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("error reading response body: %w", err)
		}
	}
	if err := os.Rename(tempOutputPath, localPath); err != nil {
		return fmt.Errorf("error finalizing output file: %w", err)
	}
	c.log.Debug().Str("file", filepath.Base(localPath)).Str("size", utils.FormatBytes(uint64(total))).Msg("Download complete")
	return nil
}

func (c *Client) apiGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json;odata=nometadata")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// escapePath prepares a server-relative path for embedding inside the
// quoted argument of a REST method: single quotes double per OData rules,
// the rest percent-encodes with path separators preserved.
func escapePath(p string) string {
	p = strings.ReplaceAll(url.PathEscape(p), "%2F", "/")
	return strings.ReplaceAll(p, "%27", "''")
}
