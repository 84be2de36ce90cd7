package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)

	ctx := context.Background()
	url, err := s.Upload(ctx, strings.NewReader("ID3 audio bytes"), "audio", "abc_episode.mp3")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/audio/abc_episode.mp3", url)

	content, err := os.ReadFile(filepath.Join(dir, "audio", "abc_episode.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "ID3 audio bytes", string(content))

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "audio", "abc_episode.mp3"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, url))
}

func TestLocalStorage_FailedUploadLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)

	_, err = s.Upload(context.Background(), failingReader{}, "audio", "broken.mp3")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "audio"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorage_Delete_RejectsForeignPaths(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)

	tests := []string{
		"https://cdn.example.com/a.mp3",
		"/uploads/../secret.txt",
		"/uploads/",
	}
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			assert.ErrorIs(t, s.Delete(context.Background(), u), ErrUnmanagedURL)
		})
	}
}

func TestLocalStorage_Upload_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "uploads")
	require.NoError(t, err)

	url, err := s.Upload(context.Background(), strings.NewReader("x"), "covers", "../../evil.png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/covers/evil.png", url)
}

func TestGenerateFileName(t *testing.T) {
	a := GenerateFileName("My Episode #1.MP3")
	b := GenerateFileName("My Episode #1.MP3")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "_My_Episode_1.mp3"), a)
	assert.True(t, strings.HasSuffix(GenerateFileName("C:\\music\\song.wav"), "_song.wav"))
	assert.False(t, strings.HasSuffix(GenerateFileName("...."), "."))
	assert.NotContains(t, GenerateFileName("../../etc/passwd"), "/")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: ""},
		{raw: "/uploads/a.mp3", want: "/uploads/a.mp3"},
		{raw: "uploads/a.mp3", want: "/uploads/a.mp3"},
		{raw: "/srv/app/uploads/audio/a.mp3", want: "/uploads/audio/a.mp3"},
		{raw: "C:\\data\\uploads\\a.mp3", want: "/uploads/a.mp3"},
		{raw: "a.mp3", want: "/uploads/a.mp3"},
		{raw: "https://res.cloudinary.com/x/video/upload/a.mp3", want: "https://res.cloudinary.com/x/video/upload/a.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL("/uploads", tt.raw))
		})
	}
}

func TestExtractPublicID(t *testing.T) {
	tests := []struct {
		url          string
		resourceType string
		publicID     string
	}{
		{
			url:          "https://res.cloudinary.com/demo/video/upload/v1712/podcasts/audio/ep1.mp3",
			resourceType: "video",
			publicID:     "podcasts/audio/ep1",
		},
		{
			url:          "https://res.cloudinary.com/demo/image/upload/covers/art.webp",
			resourceType: "image",
			publicID:     "covers/art",
		},
		{url: "https://example.com/file.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			rt, id := extractPublicID(tt.url)
			assert.Equal(t, tt.resourceType, rt)
			assert.Equal(t, tt.publicID, id)
		})
	}
}
