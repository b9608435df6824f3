package media

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresvelez/shortreel-backend/pkg/config"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
}

// FileLibrary picks background clips from a local directory.
type FileLibrary struct {
	dir string
}

// NewFileLibrary builds the library over the configured background directory.
func NewFileLibrary(cfg config.MediaConfig) *FileLibrary {
	return &FileLibrary{dir: cfg.BackgroundDir}
}

// PickBackground returns a random video file from the background directory.
func (l *FileLibrary) PickBackground(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read background dir")
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			candidates = append(candidates, filepath.Join(l.dir, entry.Name()))
		}
	}
	if len(candidates) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "no background videos available").
			WithDetails(map[string]string{"dir": l.dir})
	}
	return candidates[rand.Intn(len(candidates))], nil
}
