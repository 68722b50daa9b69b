package folders

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docintake/docintake/core/extraction"
)

// Prober counts documents in client intake folders.
type Prober struct{}

// NewProber returns a folder prober.
func NewProber() *Prober { return &Prober{} }

// Probe reports whether folderPath exists, how many documents wait directly
// inside it and how many sit under processedSubfolder. A missing folder is
// not an error.
func (p *Prober) Probe(folderPath, processedSubfolder string) (extraction.FolderStatus, error) {
	var status extraction.FolderStatus
	if strings.TrimSpace(folderPath) == "" {
		return status, errors.New("folder path is empty")
	}
	info, err := os.Stat(folderPath)
	if errors.Is(err, fs.ErrNotExist) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("stat %s: %w", folderPath, err)
	}
	if !info.IsDir() {
		return status, fmt.Errorf("%s is not a directory", folderPath)
	}
	status.Exists = true

	status.PendingCount, err = countDocuments(folderPath)
	if err != nil {
		return status, err
	}
	if processedSubfolder == "" {
		return status, nil
	}
	status.ProcessedCount, err = countDocuments(filepath.Join(folderPath, processedSubfolder))
	if errors.Is(err, fs.ErrNotExist) {
		return status, nil
	}
	return status, err
}

// countDocuments counts regular, non-hidden files directly inside dir.
func countDocuments(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		n++
	}
	return n, nil
}
