// Package corpus reads document streams from the local filesystem and writes
// surviving documents back out. Two layouts are supported: a directory of
// .txt files (one document per file, ordered by filename) and a JSONL file
// with one {"id","text"} record per line.
package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corpustools/dedup/internal/core/domain"
	"github.com/corpustools/dedup/internal/core/ports"
)

type record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// OpenSource picks the layout from the path: a directory yields a DirSource
// over its .txt files, anything else is treated as JSONL.
func OpenSource(path string) (ports.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIO, "open source", err)
	}
	if info.IsDir() {
		return NewDirSource(path)
	}
	return NewJSONLSource(path)
}

// DirSource streams the .txt files of a directory in lexicographic filename
// order so repeated runs see the same positions.
type DirSource struct {
	dir      string
	files    []string
	position int64
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIO, "read corpus dir", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return &DirSource{dir: dir, files: files}, nil
}

func (s *DirSource) Next(ctx context.Context) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.position >= int64(len(s.files)) {
		return nil, io.EOF
	}
	name := s.files[s.position]
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, domain.WrapError(domain.ErrIO, "read document", err)
	}
	doc := &domain.Document{
		Position: s.position,
		SourceID: name,
		RawText:  string(raw),
	}
	s.position++
	return doc, nil
}

func (s *DirSource) Close() error { return nil }

// JSONLSource streams one document per line. A line that is not valid JSON
// is an input error, not a skippable document.
type JSONLSource struct {
	file     *os.File
	scanner  *bufio.Scanner
	position int64
}

func NewJSONLSource(path string) (*JSONLSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIO, "open corpus file", err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &JSONLSource{file: file, scanner: scanner}, nil
}

func (s *JSONLSource) Next(ctx context.Context) (*domain.Document, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, domain.WrapError(domain.ErrIO, "read corpus line", err)
			}
			return nil, io.EOF
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, domain.WrapError(
				domain.ErrIO, "decode corpus line",
				fmt.Errorf("line %d: %w", s.position+1, err),
			)
		}
		id := rec.ID
		if id == "" {
			id = fmt.Sprintf("line-%d", s.position+1)
		}
		doc := &domain.Document{
			Position: s.position,
			SourceID: id,
			RawText:  rec.Text,
		}
		s.position++
		return doc, nil
	}
}

func (s *JSONLSource) Close() error { return s.file.Close() }
