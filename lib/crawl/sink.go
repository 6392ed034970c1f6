package crawl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives the records a job emits. Close flushes and must be called
// exactly once, the engine does so when the job's frontier drains.
type Sink interface {
	Write(v any) error
	Close() error
}

// JSONArraySink buffers records and writes them out as a single indented
// JSON array on Close. The file appears atomically via a temp-file rename,
// and is written even when no records arrived, so an empty crawl still
// marks its output as produced.
type JSONArraySink struct {
	path    string
	records []json.RawMessage
}

func NewJSONArraySink(path string) *JSONArraySink {
	return &JSONArraySink{path: path}
}

func (s *JSONArraySink) Write(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.records = append(s.records, raw)
	return nil
}

func (s *JSONArraySink) Close() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0777); err != nil {
		return err
	}

	contents, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	if s.records == nil {
		contents = []byte("[]")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, contents, 0666); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// JSONLinesSink appends one JSON document per line as records arrive.
type JSONLinesSink struct {
	f   *os.File
	enc *json.Encoder
}

// NewJSONLinesSink opens (and creates) the output file. With overwrite set
// the file is truncated, otherwise new lines append to previous runs.
func NewJSONLinesSink(path string, overwrite bool) (*JSONLinesSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, err
	}
	return &JSONLinesSink{f: f, enc: json.NewEncoder(f)}, nil
}

func (s *JSONLinesSink) Write(v any) error {
	return s.enc.Encode(v)
}

func (s *JSONLinesSink) Close() error {
	return s.f.Close()
}
