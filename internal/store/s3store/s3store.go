// Package s3store is the connector binding of the document store: the
// library is a bucket prefix, sub-folders are common prefixes one level
// below it, and downloads go through the transfer manager. The session is
// established once at connect time and used implicitly afterwards.
package s3store

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/vargulf/hvseed/internal/store"
	"github.com/vargulf/hvseed/utils"
)

const partSize = 1024 * 1024 * 8

// api is the slice of the S3 surface the client uses. *s3.Client
// satisfies it; tests substitute a fake.
type api interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Client struct {
	s3     api
	bucket string
	log    zerolog.Logger
}

func NewClient(ctx context.Context, bucket string) (*Client, error) {
	profile := os.Getenv("AWS_PROFILE")
	if profile == "" {
		profile = "default"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithSharedConfigProfile(profile))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	s3Options := func(o *s3.Options) {
		// Disable checksum validation warning
		o.DisableLogOutputChecksumValidationSkipped = true
	}
	return &Client{
		s3:     s3.NewFromConfig(cfg, s3Options),
		bucket: bucket,
		log:    utils.GetLogger("s3store"),
	}, nil
}

func (c *Client) ListFolders(ctx context.Context, prefix string) ([]store.Folder, error) {
	var folders []store.Folder
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(normalizePrefix(prefix)),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing S3 prefixes: %w", err)
		}
		for _, common := range page.CommonPrefixes {
			if common.Prefix == nil {
				continue
			}
			folders = append(folders, store.Folder{
				Name: path.Base(strings.TrimSuffix(*common.Prefix, "/")),
			})
		}
	}
	c.log.Debug().Str("prefix", prefix).Int("count", len(folders)).Msg("Folder listing complete")
	return folders, nil
}

func (c *Client) ListFiles(ctx context.Context, prefix string) ([]store.File, error) {
	normalized := normalizePrefix(prefix)
	var files []store.File
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(normalized),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || *obj.Key == normalized {
				continue // the folder marker itself
			}
			size := int64(0)
			if obj.Size != nil {
				size = *obj.Size
			}
			files = append(files, store.File{
				Name:           path.Base(*obj.Key),
				RemoteLocation: *obj.Key,
				Size:           size,
			})
		}
	}
	c.log.Debug().Str("prefix", prefix).Int("count", len(files)).Msg("File listing complete")
	return files, nil
}

func (c *Client) Download(ctx context.Context, remoteLocation string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	downloader := manager.NewDownloader(c.s3, func(d *manager.Downloader) {
		d.PartSize = partSize
		// one part in flight; transfers stay strictly sequential
		d.Concurrency = 1
	})
	written, err := downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(remoteLocation),
	})
	if err != nil {
		return fmt.Errorf("error downloading S3 object: %w", err)
	}
	c.log.Debug().Str("file", filepath.Base(localPath)).Str("size", utils.FormatBytes(uint64(written))).Msg("Download complete")
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
