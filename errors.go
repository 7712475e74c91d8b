package tabgraph

import (
	"fmt"
	"path/filepath"
)

// FileError identifies the input file a conversion failed on.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", filepath.Base(e.Path), e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
