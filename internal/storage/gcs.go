package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-extractor/internal/docparse"
)

// uploadTimeout caps a single object write.
const uploadTimeout = 2 * time.Minute

// GCS stores objects in a Google Cloud Storage bucket. It assumes
// Application Default Credentials are configured.
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS creates a bucket-backed storage backend.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) location(object string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, object)
}

func (g *GCS) writeObject(ctx context.Context, object string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %q: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload of %q: %w", object, err)
	}
	return g.location(object), nil
}

func (g *GCS) readObject(ctx context.Context, object string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open reader for %q: %w", object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", object, err)
	}
	return data, nil
}

// listObjects returns object names under prefix with the prefix stripped.
func (g *GCS) listObjects(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *GCS) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	folder := &Folder{ID: uuid.NewString(), Name: name}
	data, err := json.Marshal(folder)
	if err != nil {
		return nil, fmt.Errorf("marshal folder metadata: %w", err)
	}
	if _, err := g.writeObject(ctx, folderObject(folder.ID), data); err != nil {
		return nil, err
	}
	return folder, nil
}

func (g *GCS) FolderExists(ctx context.Context, folderID string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(folderObject(folderID)).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat folder %q: %w", folderID, err)
	}
	return true, nil
}

func (g *GCS) ListFolders(ctx context.Context) ([]Folder, error) {
	names, err := g.listObjects(ctx, "folders/")
	if err != nil {
		return nil, err
	}

	var folders []Folder
	for _, name := range names {
		data, err := g.readObject(ctx, "folders/"+name)
		if err != nil {
			return nil, err
		}
		var f Folder
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode folder metadata %q: %w", name, err)
		}
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

func (g *GCS) SaveUpload(ctx context.Context, folderID, filename string, content []byte) (string, error) {
	return g.writeObject(ctx, uploadObject(folderID, filename), content)
}

func (g *GCS) ListFiles(ctx context.Context, folderID string) ([]string, error) {
	exists, err := g.FolderExists(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return g.listObjects(ctx, "uploads/"+folderID+"/")
}

func (g *GCS) ReadFileContent(ctx context.Context, folderID, filename string) ([]byte, error) {
	return g.readObject(ctx, uploadObject(folderID, filename))
}

func (g *GCS) SaveProcessedFile(ctx context.Context, folderID, filename, csvText string) (string, error) {
	return g.writeObject(ctx, processedObject(folderID, filename), []byte(csvText))
}

func (g *GCS) GetProcessedFileContent(ctx context.Context, folderID, filename string) (string, error) {
	data, err := g.readObject(ctx, processedObject(folderID, filename))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (g *GCS) SaveParsedOutput(ctx context.Context, folderID, filename string, doc *docparse.ParsedDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal parsed output: %w", err)
	}
	return g.writeObject(ctx, parsedObject(folderID, filename), data)
}

func (g *GCS) GetParsedOutput(ctx context.Context, folderID, filename string) (*docparse.ParsedDocument, error) {
	data, err := g.readObject(ctx, parsedObject(folderID, filename))
	if err != nil {
		return nil, err
	}
	var doc docparse.ParsedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode parsed output: %w", err)
	}
	return &doc, nil
}

func (g *GCS) SaveExtractionSchema(ctx context.Context, folderID, filename string, schemaJSON []byte) error {
	_, err := g.writeObject(ctx, schemaObject(folderID, filename), schemaJSON)
	return err
}

func (g *GCS) GetExtractionSchema(ctx context.Context, folderID, filename string) ([]byte, error) {
	return g.readObject(ctx, schemaObject(folderID, filename))
}

func (g *GCS) DeleteExtractionSchema(ctx context.Context, folderID, filename string) (bool, error) {
	err := g.client.Bucket(g.bucket).Object(schemaObject(folderID, filename)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete schema for %s/%s: %w", folderID, filename, err)
	}
	return true, nil
}
