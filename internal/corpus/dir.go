package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// paragraphSeparator splits documents into chunks.
const paragraphSeparator = "\n\n"

// DirSource reads .md and .txt files under Root, recursively, and splits each
// into paragraph chunks identified as "<file name>:<ordinal>".
type DirSource struct {
	Root string
}

var _ ChunkSource = (*DirSource)(nil)

// NewDirSource creates a source over root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// Chunks implements ChunkSource. A missing root is created and yields no chunks.
// Files are visited in lexical path order.
func (d *DirSource) Chunks(ctx context.Context) ([]Chunk, error) {
	if _, err := os.Stat(d.Root); os.IsNotExist(err) {
		if err := os.MkdirAll(d.Root, 0o755); err != nil {
			return nil, fmt.Errorf("create corpus dir: %w", err)
		}
		return nil, nil
	}

	var chunks []Chunk
	err := filepath.WalkDir(d.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !IsCorpusFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		chunks = append(chunks, SplitParagraphs(path, string(data))...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir %s: %w", d.Root, err)
	}
	return chunks, nil
}

// IsCorpusFile reports whether path has a .md or .txt extension, ignoring case.
func IsCorpusFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	}
	return false
}

// SplitParagraphs chunks text on blank lines. Blank paragraphs are skipped
// and do not consume an ordinal.
func SplitParagraphs(path, text string) []Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	doc := filepath.Base(path)

	var chunks []Chunk
	for _, part := range strings.Split(text, paragraphSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ordinal := len(chunks)
		chunks = append(chunks, Chunk{
			ID:   fmt.Sprintf("%s:%d", doc, ordinal),
			Text: part,
			Meta: ChunkMeta{Path: path, Doc: doc, Ordinal: ordinal},
		})
	}
	return chunks
}
