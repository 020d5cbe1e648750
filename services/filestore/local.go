package filestoresvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
)

// Buckets applicants may upload into. Each document slot of an application
// form maps to one bucket.
var Buckets = []string{
	"identity-documents",
	"proof-of-address",
	"parent-ids",
	"report-cards",
	"banking-details",
	"qualifications",
	"avatars",
}

var ErrUnknownBucket = errors.New("unknown bucket")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Service interface {
	// Upload stores the content under bucket/name and returns the public URL
	// the stored document is served from.
	Upload(ctx context.Context, bucket, name string, content io.Reader) (string, error)
	PublicURL(bucket, name string) string
}

// localService stores uploads on the local filesystem under conf.Storage.Root.
type localService struct {
	root    string
	baseURL string
}

var _ Service = (*localService)(nil)

func NewLocalService(conf *core.Config) (*localService, error) {
	root := conf.Storage.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(conf.WorkDir, root)
	}
	for _, bucket := range Buckets {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
			return nil, errors.Wrap(err, "creating bucket dir")
		}
	}
	return &localService{
		root:    root,
		baseURL: strings.TrimSuffix(conf.Storage.BaseURL, "/"),
	}, nil
}

func ValidBucket(bucket string) bool {
	for _, b := range Buckets {
		if b == bucket {
			return true
		}
	}
	return false
}

func (svc *localService) Upload(ctx context.Context, bucket, name string, content io.Reader) (string, error) {
	if !ValidBucket(bucket) {
		return "", ErrUnknownBucket
	}
	name = CleanFilename(name)

	f, err := os.Create(filepath.Join(svc.root, bucket, name))
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer f.Close()

	if _, err = io.Copy(f, content); err != nil {
		return "", errors.Wrap(err, "writing upload file")
	}
	return svc.PublicURL(bucket, name), nil
}

func (svc *localService) PublicURL(bucket, name string) string {
	return svc.baseURL + "/" + path.Join(bucket, name)
}

// CleanFilename strips path components and unsafe characters from an
// uploaded filename.
func CleanFilename(name string) string {
	name = filepath.Base(name)
	return unsafeChars.ReplaceAllString(name, "-")
}
