package filestoresvc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagisom/imfundo/core"
)

func newTestService(t *testing.T) *localService {
	t.Helper()

	conf := &core.Config{
		WorkDir: t.TempDir(),
		Storage: core.StorageConfig{
			Root:    "uploads",
			BaseURL: "http://localhost:8000/uploads/",
		},
	}
	svc, err := NewLocalService(conf)
	require.NoError(t, err)
	return svc
}

func Test_localService_Upload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	url, err := svc.Upload(ctx, "report-cards", "term 2 report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/uploads/report-cards/term-2-report.pdf", url)

	data, err := os.ReadFile(filepath.Join(svc.root, "report-cards", "term-2-report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, err = svc.Upload(ctx, "nope", "x.pdf", strings.NewReader("x"))
	assert.Equal(t, ErrUnknownBucket, err)
}

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"spaces", "my report.pdf", "my-report.pdf"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"unicode", "résumé.pdf", "r-sum-.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanFilename(tt.in))
		})
	}
}
