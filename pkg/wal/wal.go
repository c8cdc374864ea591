package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileModeReadOnly rw-r--r--, the default for data files.
const FileModeReadOnly fs.FileMode = 0644

// WAL is an append-only JSON-lines journal. Writers buffer through Write
// and make records durable with Flush; ReadAll replays the file from the
// beginning. Safe for concurrent use.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// Open opens or creates the journal at path. O_APPEND keeps every write
// at the end of the file regardless of interleaving.
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return &WAL{
		file: file,
		buf:  bufio.NewWriter(file),
	}, nil
}

// Write appends one record to the buffer. The record is not durable
// until Flush returns.
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return json.NewEncoder(w.buf).Encode(v)
}

// Flush drains the buffer and fsyncs the file.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Discard drops everything buffered since the last Flush. Callers use it
// to back out a batch of Writes that will not be committed.
func (w *WAL) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Reset(w.file)
}

// ReadAll streams every record to callback in write order. Records are
// handed over as raw JSON so callers decide the concrete type, without
// loading the whole file at once.
func (w *WAL) ReadAll(callback func(raw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := callback(raw); err != nil {
			return err
		}
	}

	// Leave the cursor at the end for subsequent appends.
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
