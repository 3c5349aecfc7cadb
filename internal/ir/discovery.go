package ir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

type DocumentMetadata struct {
	ID       DocumentID
	Name     string
	FilePath string
}

// Discovery lists SDL documents and reads their content.
type Discovery interface {
	ListDocuments(ctx context.Context) ([]*DocumentMetadata, error)
	ReadDocument(ctx context.Context, id DocumentID) (string, error)
}

func isSDL(name string) bool {
	ext := path.Ext(name)
	return ext == ".graphql" || ext == ".graphqls"
}

func metadataFor(p string) *DocumentMetadata {
	base := path.Base(p)
	return &DocumentMetadata{
		ID:       DocumentID(p),
		Name:     strings.TrimSuffix(base, path.Ext(base)),
		FilePath: p,
	}
}

// FSDiscovery serves the .graphql and .graphqls files of a file system.
type FSDiscovery struct {
	fsys  fs.FS
	metas []*DocumentMetadata
}

// NewFSDiscovery walks fsys for SDL documents.
func NewFSDiscovery(ctx context.Context, fsys fs.FS) (*FSDiscovery, error) {
	d := &FSDiscovery{fsys: fsys}
	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() && isSDL(p) {
			d.metas = append(d.metas, metadataFor(p))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover SDL documents: %w", err)
	}
	return d, nil
}

func (d *FSDiscovery) ListDocuments(context.Context) ([]*DocumentMetadata, error) {
	return append([]*DocumentMetadata(nil), d.metas...), nil
}

func (d *FSDiscovery) ReadDocument(_ context.Context, id DocumentID) (string, error) {
	content, err := fs.ReadFile(d.fsys, string(id))
	if err != nil {
		return "", fmt.Errorf("read document %q: %w", id, err)
	}
	return string(content), nil
}

// Load builds the project from the SDL files under rootDir.
func Load(ctx context.Context, rootDir string) (*Project, error) {
	if rootDir == "" {
		return nil, errors.New("schema root directory is not set")
	}
	if _, err := os.Stat(rootDir); err != nil {
		return nil, err
	}
	disc, err := NewFSDiscovery(ctx, os.DirFS(rootDir))
	if err != nil {
		return nil, err
	}
	return Build(ctx, disc)
}

type InMemoryDocument struct {
	// Path is slash separated, e.g. "products/product.graphql".
	Path    string
	Content string
}

// InMemoryDiscovery serves documents held in memory.
type InMemoryDiscovery struct {
	docs []InMemoryDocument
}

func NewInMemoryDiscovery(docs []InMemoryDocument) *InMemoryDiscovery {
	return &InMemoryDiscovery{docs: docs}
}

func (d *InMemoryDiscovery) ListDocuments(context.Context) ([]*DocumentMetadata, error) {
	out := make([]*DocumentMetadata, len(d.docs))
	for i, doc := range d.docs {
		out[i] = metadataFor(doc.Path)
	}
	return out, nil
}

func (d *InMemoryDiscovery) ReadDocument(_ context.Context, id DocumentID) (string, error) {
	for _, doc := range d.docs {
		if DocumentID(doc.Path) == id {
			return doc.Content, nil
		}
	}
	return "", fmt.Errorf("document %q not found", id)
}
