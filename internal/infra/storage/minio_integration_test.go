package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMinio(t *testing.T) MinioConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "leafcheck",
				"MINIO_ROOT_PASSWORD": "leafcheck-secret",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return MinioConfig{
		Endpoint:   fmt.Sprintf("%s:%s", host, port.Port()),
		Bucket:     "leaf-images",
		AccessKey:  "leafcheck",
		SecretKey:  "leafcheck-secret",
		PresignTTL: time.Minute,
	}
}

func TestMinioStoreIntegration(t *testing.T) {
	cfg := startMinio(t)
	ctx := context.Background()

	s, err := NewMinioStore(ctx, cfg, t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	img, err := s.Save(ctx, "2025/03/01/leaf.jpg", "image/jpeg", strings.NewReader("jpegdata"), 8)
	require.NoError(t, err)
	staged, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(staged))

	rec := httptest.NewRecorder()
	s.ServeImage(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+img.Ref, nil), img.Ref)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "X-Amz-Signature")

	require.NoError(t, s.Release(ctx, img))
	_, err = os.Stat(img.Path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Delete(ctx, img.Ref))
	rec = httptest.NewRecorder()
	s.ServeImage(rec, httptest.NewRequest(http.MethodGet, "/uploads/"+img.Ref, nil), img.Ref)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
