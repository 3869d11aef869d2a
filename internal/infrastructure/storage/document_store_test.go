package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"floor plan.pdf", "floorplan.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\dana\photo 1.JPG`, "photo1.JPG"},
		{"..hidden", "hidden"},
		{"../", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}

func TestLocalDocumentStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalDocumentStore(dir, zap.NewNop())
	ctx := context.Background()

	rel, err := store.Save(ctx, 7, "warranty.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "project-7/"))
	assert.True(t, strings.HasSuffix(rel, "-warranty.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	f, err := store.FileSystem().Open("/" + rel)
	require.NoError(t, err)
	served, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "%PDF-1.4", string(served))

	require.NoError(t, store.Delete(ctx, rel))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, rel))
}

func TestLocalDocumentStore_SaveSameNameTwice(t *testing.T) {
	store := NewLocalDocumentStore(t.TempDir(), zap.NewNop())

	a, err := store.Save(context.Background(), 1, "photo.jpg", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save(context.Background(), 1, "photo.jpg", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocalDocumentStore_Rejects(t *testing.T) {
	store := NewLocalDocumentStore(t.TempDir(), zap.NewNop())

	_, err := store.Save(context.Background(), 1, "../", strings.NewReader("x"))
	assert.Error(t, err)

	assert.Error(t, store.Delete(context.Background(), "../outside.txt"))
}
