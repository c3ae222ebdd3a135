package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing.db")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "saku.db", []byte("v1")))
	require.NoError(t, s.Put(ctx, "saku.db", []byte("v2")))

	got, err := s.Get(ctx, "saku.db")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete(ctx, "saku.db"))
	require.NoError(t, s.Delete(ctx, "saku.db"), "deleting twice is not an error")

	_, err = s.Get(ctx, "saku.db")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Close())
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_CopiesData(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", data))
	data[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestFile(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFile_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Put(context.Background(), "saku.db", []byte("image")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "saku.db", entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, "saku.db"))
	require.NoError(t, err)
	assert.Equal(t, "image", string(raw))
}

func TestFile_RejectsTraversal(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, f.Put(context.Background(), "../escape", []byte("x")))
	_, err = f.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestParseGSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/path/saku.db", "bucket", "path/saku.db", false},
		{"gs://bucket/saku.db", "bucket", "saku.db", false},
		{"gs://bucket", "", "", true},
		{"s3://bucket/key", "", "", true},
		{"gs:///key", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, o, err := ParseGSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, b)
			assert.Equal(t, tt.wantObject, o)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	s, err := Open(ctx, Config{Backend: BackendMemory}, log)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Config{Backend: BackendFile, Dir: t.TempDir()}, log)
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, Config{Backend: "floppy"}, log)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Backend: BackendS3}, log)
	assert.Error(t, err, "s3 without bucket must fail")
}
