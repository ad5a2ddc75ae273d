package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExtension(t *testing.T) {
	tests := []struct {
		ext      string
		wantCode int // 0 = accepted
	}{
		{"md", 0},
		{"txt", 0},
		{"json", 0},
		{"png", fiber.StatusBadRequest},
		{"pdf", fiber.StatusBadRequest},
		{"exe", fiber.StatusBadRequest},
		{"", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run("ext_"+tt.ext, func(t *testing.T) {
			err := checkExtension(tt.ext)
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			var fiberErr *fiber.Error
			require.ErrorAs(t, err, &fiberErr)
			assert.Equal(t, tt.wantCode, fiberErr.Code)
		})
	}
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "md", extensionOf("规章制度.MD"))
	assert.Equal(t, "txt", extensionOf("a.b.txt"))
	assert.Equal(t, "", extensionOf("noextension"))
}

func TestSplitStoredFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1712_doc.md")
	content := strings.Repeat("星级评定标准的说明。", 200)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := &documentService{}
	chunks, err := s.splitStoredFile(path, "1712_doc.md", "md")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, "1712_doc.md", c.Metadata["source"])
		assert.Equal(t, "md", c.Metadata["fileType"])
		assert.NotEmpty(t, c.Text)
		assert.Nil(t, c.Embedding, "chunk %d must await the embedding consumer", i)
	}
}

func TestSplitStoredFileRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1712_empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n  "), 0644))

	s := &documentService{}
	_, err := s.splitStoredFile(path, "1712_empty.txt", "txt")

	var fiberErr *fiber.Error
	require.ErrorAs(t, err, &fiberErr)
	assert.Equal(t, fiber.StatusBadRequest, fiberErr.Code)
}
