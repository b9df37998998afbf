// Package storage persists statement files and their processing artifacts.
// Both backends share one object layout:
//
//	folders/<id>.json           folder metadata
//	uploads/<folder>/<file>     original statement bytes
//	parsed/<folder>/<file>.json cached vendor parse output
//	processed/<folder>/<file>.csv rendered CSV
//	schemas/<folder>/<file>.json  per-file extraction schema
package storage

import (
	"context"
	"errors"
	"path"

	"github.com/dvloznov/statement-extractor/internal/docparse"
)

// ErrNotFound indicates the requested folder, file or artifact does not
// exist in the backend.
var ErrNotFound = errors.New("storage: not found")

// Folder groups a user's uploaded statements.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Backend is the persistence contract the processing service runs against.
// Save methods return a backend-specific location string (a filesystem path
// or a gs:// URI) for logging.
type Backend interface {
	CreateFolder(ctx context.Context, name string) (*Folder, error)
	FolderExists(ctx context.Context, folderID string) (bool, error)
	ListFolders(ctx context.Context) ([]Folder, error)

	SaveUpload(ctx context.Context, folderID, filename string, content []byte) (string, error)
	ListFiles(ctx context.Context, folderID string) ([]string, error)
	ReadFileContent(ctx context.Context, folderID, filename string) ([]byte, error)

	SaveProcessedFile(ctx context.Context, folderID, filename, csvText string) (string, error)
	GetProcessedFileContent(ctx context.Context, folderID, filename string) (string, error)

	SaveParsedOutput(ctx context.Context, folderID, filename string, doc *docparse.ParsedDocument) (string, error)
	GetParsedOutput(ctx context.Context, folderID, filename string) (*docparse.ParsedDocument, error)

	SaveExtractionSchema(ctx context.Context, folderID, filename string, schemaJSON []byte) error
	GetExtractionSchema(ctx context.Context, folderID, filename string) ([]byte, error)
	DeleteExtractionSchema(ctx context.Context, folderID, filename string) (bool, error)
}

func folderObject(folderID string) string {
	return path.Join("folders", folderID+".json")
}

func uploadObject(folderID, filename string) string {
	return path.Join("uploads", folderID, filename)
}

func parsedObject(folderID, filename string) string {
	return path.Join("parsed", folderID, filename+".json")
}

func processedObject(folderID, filename string) string {
	return path.Join("processed", folderID, filename+".csv")
}

func schemaObject(folderID, filename string) string {
	return path.Join("schemas", folderID, filename+".json")
}
