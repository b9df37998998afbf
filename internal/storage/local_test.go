package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-extractor/internal/docparse"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return l
}

func TestLocalFolderLifecycle(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	folder, err := l.CreateFolder(ctx, "Statements 2024")
	require.NoError(t, err)
	require.NotEmpty(t, folder.ID)
	assert.Equal(t, "Statements 2024", folder.Name)

	exists, err := l.FolderExists(ctx, folder.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = l.FolderExists(ctx, "no-such-folder")
	require.NoError(t, err)
	assert.False(t, exists)

	other, err := l.CreateFolder(ctx, "Archive")
	require.NoError(t, err)

	folders, err := l.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "Archive", folders[0].Name)
	assert.Equal(t, other.ID, folders[0].ID)
	assert.Equal(t, "Statements 2024", folders[1].Name)
}

func TestLocalUploadsRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	folder, err := l.CreateFolder(ctx, "stmts")
	require.NoError(t, err)

	content := []byte("%PDF-1.4 fake statement")
	location, err := l.SaveUpload(ctx, folder.ID, "jan.pdf", content)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("uploads", folder.ID, "jan.pdf"),
		mustRel(t, l.baseDir, location))

	got, err := l.ReadFileContent(ctx, folder.ID, "jan.pdf")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = l.ReadFileContent(ctx, folder.ID, "feb.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalListFiles(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	folder, err := l.CreateFolder(ctx, "stmts")
	require.NoError(t, err)

	// Folder with no uploads yet lists empty.
	files, err := l.ListFiles(ctx, folder.ID)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = l.SaveUpload(ctx, folder.ID, "feb.pdf", []byte("b"))
	require.NoError(t, err)
	_, err = l.SaveUpload(ctx, folder.ID, "jan.pdf", []byte("a"))
	require.NoError(t, err)

	files, err = l.ListFiles(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"feb.pdf", "jan.pdf"}, files)

	_, err = l.ListFiles(ctx, "no-such-folder")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalProcessedFile(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	csv := "Date,Amount\n2024-01-01,+5.00\n"
	location, err := l.SaveProcessedFile(ctx, "f1", "jan.pdf", csv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("processed", "f1", "jan.pdf.csv"),
		mustRel(t, l.baseDir, location))

	got, err := l.GetProcessedFileContent(ctx, "f1", "jan.pdf")
	require.NoError(t, err)
	assert.Equal(t, csv, got)

	_, err = l.GetProcessedFileContent(ctx, "f1", "feb.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalParsedOutputRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	page := 2
	doc := &docparse.ParsedDocument{
		Markdown: "# Statement",
		Chunks: []docparse.Chunk{
			{ID: "c1", Type: "table", Markdown: "| a | b |", PageNumber: &page},
		},
	}

	_, err := l.SaveParsedOutput(ctx, "f1", "jan.pdf", doc)
	require.NoError(t, err)

	got, err := l.GetParsedOutput(ctx, "f1", "jan.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.Markdown, got.Markdown)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "c1", got.Chunks[0].ID)
	assert.Equal(t, 2, got.Chunks[0].Page())

	_, err = l.GetParsedOutput(ctx, "f1", "feb.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalExtractionSchema(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	schemaJSON := []byte(`{"type":"object","properties":{"date":{"type":"string"}}}`)
	require.NoError(t, l.SaveExtractionSchema(ctx, "f1", "jan.pdf", schemaJSON))

	got, err := l.GetExtractionSchema(ctx, "f1", "jan.pdf")
	require.NoError(t, err)
	assert.Equal(t, schemaJSON, got)

	existed, err := l.DeleteExtractionSchema(ctx, "f1", "jan.pdf")
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = l.GetExtractionSchema(ctx, "f1", "jan.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))

	existed, err = l.DeleteExtractionSchema(ctx, "f1", "jan.pdf")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestLocalIsolatedPerFolder(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	_, err := l.SaveProcessedFile(ctx, "f1", "jan.pdf", "a")
	require.NoError(t, err)
	_, err = l.GetProcessedFileContent(ctx, "f2", "jan.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func mustRel(t *testing.T, base, target string) string {
	t.Helper()
	rel, err := filepath.Rel(base, target)
	require.NoError(t, err)
	return rel
}

func TestNewLocalCreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	_, err := NewLocal(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
