package picks

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/abhishekslab/growwbot/internal/models"
)

// FileProvider serves candidates from a YAML file mapping dates to candidate lists:
//
//	2025-01-06:
//	  - symbol: RELIANCE
//	    day_change_pct: 3.2
//	    high_conviction: true
type FileProvider struct {
	path string

	once sync.Once
	days map[string][]models.Candidate
	err  error
}

// NewFileProvider creates a provider reading path lazily on first use.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Candidates implements Provider.
func (f *FileProvider) Candidates(ctx context.Context, date string) (*Snapshot, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return nil, f.err
	}

	snap := &Snapshot{
		Candidates: append([]models.Candidate(nil), f.days[date]...),
		Meta:       Meta{Date: date, Source: "file", Historical: true},
	}
	snap.Count()
	return snap, nil
}

// Dates returns the number of dates in the file.
func (f *FileProvider) Dates() (int, error) {
	f.once.Do(f.load)
	return len(f.days), f.err
}

func (f *FileProvider) load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.err = fmt.Errorf("failed to read picks file: %w", err)
		return
	}
	days := make(map[string][]models.Candidate)
	if err := yaml.Unmarshal(data, &days); err != nil {
		f.err = fmt.Errorf("failed to parse picks file: %w", err)
		return
	}
	f.days = days
}
