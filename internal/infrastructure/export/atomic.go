package export

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

// pendingFile is written under a temporary name and moved into place by commit
type pendingFile struct {
	final     string
	tmp       *os.File
	backup    string
	committed bool
}

func createPending(final string) (*pendingFile, error) {
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PathError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(final)+".*.tmp")
	if err != nil {
		return nil, &PathError{Op: "create", Path: final, Err: err}
	}
	return &pendingFile{final: final, tmp: tmp}, nil
}

// write streams fn's output through a buffer and closes the temp file
func (p *pendingFile) write(fn func(w io.Writer) error) error {
	bw := bufio.NewWriter(p.tmp)
	if err := fn(bw); err != nil {
		_ = p.tmp.Close()
		return &PathError{Op: "write", Path: p.final, Err: err}
	}
	if err := bw.Flush(); err != nil {
		_ = p.tmp.Close()
		return &PathError{Op: "write", Path: p.final, Err: err}
	}
	if err := p.tmp.Sync(); err != nil {
		_ = p.tmp.Close()
		return &PathError{Op: "sync", Path: p.final, Err: err}
	}
	if err := p.tmp.Close(); err != nil {
		return &PathError{Op: "close", Path: p.final, Err: err}
	}
	return nil
}

func (p *pendingFile) discard() {
	_ = p.tmp.Close()
	_ = os.Remove(p.tmp.Name())
}

// commit moves the temp file into place. A regular file already at final is first
// moved aside so rollback can put it back.
func (p *pendingFile) commit() error {
	if info, err := os.Lstat(p.final); err == nil && info.Mode().IsRegular() {
		reserved, err := os.CreateTemp(filepath.Dir(p.final), "."+filepath.Base(p.final)+".*.bak")
		if err != nil {
			return &PathError{Op: "backup", Path: p.final, Err: err}
		}
		_ = reserved.Close()
		if err := os.Rename(p.final, reserved.Name()); err != nil {
			_ = os.Remove(reserved.Name())
			return &PathError{Op: "backup", Path: p.final, Err: err}
		}
		p.backup = reserved.Name()
	}
	if err := os.Rename(p.tmp.Name(), p.final); err != nil {
		p.restore()
		return &PathError{Op: "rename", Path: p.final, Err: err}
	}
	p.committed = true
	return nil
}

// restore undoes commit: the previous file comes back, or the new one is removed
func (p *pendingFile) restore() {
	if p.committed && p.backup == "" {
		_ = os.Remove(p.final)
	}
	if p.backup != "" {
		_ = os.Rename(p.backup, p.final)
		p.backup = ""
	}
	p.committed = false
}

func (p *pendingFile) dropBackup() {
	if p.backup != "" {
		_ = os.Remove(p.backup)
		p.backup = ""
	}
}

// writeAll writes every file and renames them into place only if all writes succeeded.
// When a rename fails, files already moved into place are rolled back to their previous content.
func writeAll(paths []string, writers []func(io.Writer) error) error {
	pending := make([]*pendingFile, 0, len(paths))
	cleanup := func() {
		for _, p := range pending {
			p.discard()
		}
	}

	for i, path := range paths {
		p, err := createPending(path)
		if err != nil {
			cleanup()
			return err
		}
		pending = append(pending, p)
		if err := p.write(writers[i]); err != nil {
			cleanup()
			return err
		}
	}

	for i, p := range pending {
		if err := p.commit(); err != nil {
			for j := i - 1; j >= 0; j-- {
				pending[j].restore()
			}
			for _, rest := range pending[i:] {
				rest.discard()
			}
			return err
		}
	}
	for _, p := range pending {
		p.dropBackup()
	}
	return nil
}
