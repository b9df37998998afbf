package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-extractor/internal/docparse"
)

// Local stores everything under a base directory on the local filesystem.
// Folder IDs are generated UUIDs so folder names never leak into paths.
type Local struct {
	baseDir string
}

// NewLocal creates a filesystem backend rooted at baseDir, creating the
// directory if needed.
func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", baseDir, err)
	}
	return &Local{baseDir: baseDir}, nil
}

func (l *Local) path(object string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(object))
}

func (l *Local) writeObject(object string, data []byte) (string, error) {
	p := l.path(object)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %q: %w", object, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %q: %w", object, err)
	}
	return p, nil
}

func (l *Local) readObject(object string) ([]byte, error) {
	data, err := os.ReadFile(l.path(object))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", object, err)
	}
	return data, nil
}

func (l *Local) CreateFolder(_ context.Context, name string) (*Folder, error) {
	folder := &Folder{ID: uuid.NewString(), Name: name}
	data, err := json.Marshal(folder)
	if err != nil {
		return nil, fmt.Errorf("marshal folder metadata: %w", err)
	}
	if _, err := l.writeObject(folderObject(folder.ID), data); err != nil {
		return nil, err
	}
	return folder, nil
}

func (l *Local) FolderExists(_ context.Context, folderID string) (bool, error) {
	_, err := os.Stat(l.path(folderObject(folderID)))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat folder %q: %w", folderID, err)
	}
	return true, nil
}

func (l *Local) ListFolders(_ context.Context) ([]Folder, error) {
	entries, err := os.ReadDir(filepath.Join(l.baseDir, "folders"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	var folders []Folder
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := l.readObject("folders/" + entry.Name())
		if err != nil {
			return nil, err
		}
		var f Folder
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode folder metadata %q: %w", entry.Name(), err)
		}
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

func (l *Local) SaveUpload(_ context.Context, folderID, filename string, content []byte) (string, error) {
	return l.writeObject(uploadObject(folderID, filename), content)
}

func (l *Local) ListFiles(ctx context.Context, folderID string) ([]string, error) {
	exists, err := l.FolderExists(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	entries, err := os.ReadDir(filepath.Join(l.baseDir, "uploads", folderID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list files in folder %q: %w", folderID, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *Local) ReadFileContent(_ context.Context, folderID, filename string) ([]byte, error) {
	return l.readObject(uploadObject(folderID, filename))
}

func (l *Local) SaveProcessedFile(_ context.Context, folderID, filename, csvText string) (string, error) {
	return l.writeObject(processedObject(folderID, filename), []byte(csvText))
}

func (l *Local) GetProcessedFileContent(_ context.Context, folderID, filename string) (string, error) {
	data, err := l.readObject(processedObject(folderID, filename))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Local) SaveParsedOutput(_ context.Context, folderID, filename string, doc *docparse.ParsedDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal parsed output: %w", err)
	}
	return l.writeObject(parsedObject(folderID, filename), data)
}

func (l *Local) GetParsedOutput(_ context.Context, folderID, filename string) (*docparse.ParsedDocument, error) {
	data, err := l.readObject(parsedObject(folderID, filename))
	if err != nil {
		return nil, err
	}
	var doc docparse.ParsedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode parsed output: %w", err)
	}
	return &doc, nil
}

func (l *Local) SaveExtractionSchema(_ context.Context, folderID, filename string, schemaJSON []byte) error {
	_, err := l.writeObject(schemaObject(folderID, filename), schemaJSON)
	return err
}

func (l *Local) GetExtractionSchema(_ context.Context, folderID, filename string) ([]byte, error) {
	return l.readObject(schemaObject(folderID, filename))
}

func (l *Local) DeleteExtractionSchema(_ context.Context, folderID, filename string) (bool, error) {
	err := os.Remove(l.path(schemaObject(folderID, filename)))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete schema for %s/%s: %w", folderID, filename, err)
	}
	return true, nil
}
