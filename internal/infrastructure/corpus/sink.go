package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/corpustools/dedup/internal/core/domain"
	"github.com/corpustools/dedup/internal/core/ports"
)

// OpenSink mirrors OpenSource: a path ending in .jsonl gets a JSONL sink,
// anything else is created as a directory of .txt files.
func OpenSink(path string) (ports.Sink, error) {
	if strings.HasSuffix(path, ".jsonl") {
		return NewJSONLSink(path)
	}
	return NewDirSink(path)
}

// DirSink writes one .txt file per surviving document, named by SourceID.
type DirSink struct {
	dir string
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.WrapError(domain.ErrIO, "create output dir", err)
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Write(ctx context.Context, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(doc.SourceID)
	if !strings.HasSuffix(name, ".txt") {
		name += ".txt"
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(doc.RawText), 0o644); err != nil {
		return domain.WrapError(domain.ErrIO, "write document", err)
	}
	return nil
}

func (s *DirSink) Close() error { return nil }

// JSONLSink appends one record per surviving document and flushes after each
// write, so a fatal error mid-run leaves every completed document on disk.
type JSONLSink struct {
	file   *os.File
	writer *bufio.Writer
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.WrapError(domain.ErrIO, "create output dir", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIO, "create output file", err)
	}
	return &JSONLSink{file: file, writer: bufio.NewWriter(file)}, nil
}

func (s *JSONLSink) Write(ctx context.Context, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(record{ID: doc.SourceID, Text: doc.RawText})
	if err != nil {
		return domain.WrapError(domain.ErrIO, "encode document", err)
	}
	if _, err := s.writer.Write(append(line, '\n')); err != nil {
		return domain.WrapError(domain.ErrIO, "write document", err)
	}
	if err := s.writer.Flush(); err != nil {
		return domain.WrapError(domain.ErrIO, "flush output", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return domain.WrapError(domain.ErrIO, "flush output", err)
	}
	if err := s.file.Close(); err != nil {
		return domain.WrapError(domain.ErrIO, "close output", err)
	}
	return nil
}
