package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/config"
)

type fakeStore struct {
	name string
	url  string
	err  error

	calls int
	ctxOK bool
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Save(ctx context.Context, _ string, _ Upload) (string, error) {
	f.calls++
	_, f.ctxOK = ctx.Deadline()
	return f.url, f.err
}

func TestObjectName(t *testing.T) {
	pattern := regexp.MustCompile(`^img_\d+_[0-9a-f]{8}\.jpg$`)
	assert.Regexp(t, pattern, ObjectName("img", "Rash Photo.JPG", ".bin"))

	assert.Regexp(t, regexp.MustCompile(`^voice_\d+_[0-9a-f]{8}\.webm$`), ObjectName("voice", "recording", ".webm"))
	assert.Regexp(t, regexp.MustCompile(`^img_\d+_[0-9a-f]{8}\.png$`), ObjectName("img", "photo.P*NG", ".bin"))
	assert.NotEqual(t, ObjectName("img", "a.png", ""), ObjectName("img", "a.png", ""))
}

func TestDiskStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static", "uploads")
	d := NewDiskStore(dir, "http://localhost:8080/")

	url, err := d.Save(context.Background(), "img_1_abcd.png", Upload{Data: []byte("png-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/static/uploads/img_1_abcd.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "img_1_abcd.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestDiskStoreRejectsPathTraversal(t *testing.T) {
	d := NewDiskStore(t.TempDir(), "http://localhost")

	_, err := d.Save(context.Background(), "../escape.png", Upload{Data: []byte("x")})
	assert.Error(t, err)
}

func TestChainFallsBackInOrder(t *testing.T) {
	remote := &fakeStore{name: "remote", err: errors.New("access denied")}
	local := &fakeStore{name: "local", url: "http://localhost/static/uploads/a.png"}

	chain := NewChain(zap.NewNop(), time.Second, nil, remote, local)
	url, err := chain.Save(context.Background(), "a.png", Upload{})

	require.NoError(t, err)
	assert.Equal(t, "http://localhost/static/uploads/a.png", url)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 1, local.calls)
	assert.True(t, remote.ctxOK, "each backend gets a bounded context")
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	remote := &fakeStore{name: "remote", url: "https://cdn/media/a.png"}
	local := &fakeStore{name: "local", url: "http://localhost/static/uploads/a.png"}

	url, err := NewChain(zap.NewNop(), 0, remote, local).Save(context.Background(), "a.png", Upload{})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/media/a.png", url)
	assert.Zero(t, local.calls)
}

func TestChainReportsTotalFailure(t *testing.T) {
	chain := NewChain(zap.NewNop(), 0,
		&fakeStore{name: "remote", err: errors.New("timeout")},
		&fakeStore{name: "local"},
	)

	url, err := chain.Save(context.Background(), "a.png", Upload{})
	assert.Empty(t, url)
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.ErrorContains(t, err, "timeout")
}

func TestObjectStorePublicURL(t *testing.T) {
	client, err := NewMinioClient(config.StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "admin",
		SecretKey: "secret",
	})
	require.NoError(t, err)

	s := NewObjectStore(client, "media", "")
	assert.Equal(t, "http://localhost:9000/media/img.png", s.PublicURL("img.png"))

	s = NewObjectStore(client, "media", "https://project.supabase.co/storage/v1/object/public/media/")
	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/media/img.png", s.PublicURL("img.png"))
}
