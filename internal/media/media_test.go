package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresvelez/shortreel-backend/pkg/config"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

func TestFileLibraryPicksOnlyVideoFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"clip.mp4", "clip.webm", "notes.txt", "cover.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	library := NewFileLibrary(config.MediaConfig{BackgroundDir: dir})
	for i := 0; i < 10; i++ {
		picked, err := library.PickBackground(context.Background())
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		ext := filepath.Ext(picked)
		if ext != ".mp4" && ext != ".webm" {
			t.Fatalf("picked non-video file %s", picked)
		}
	}
}

func TestFileLibraryEmptyDirFailsRetryably(t *testing.T) {
	t.Parallel()

	library := NewFileLibrary(config.MediaConfig{BackgroundDir: t.TempDir()})
	_, err := library.PickBackground(context.Background())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestDrawWordColorsAndTiming(t *testing.T) {
	t.Parallel()

	logg := logger.New(logger.Options{ServiceName: "media-test", Output: io.Discard})
	renderer, err := NewFFmpegRenderer(config.MediaConfig{}, config.CaptionsConfig{FontSize: 60}, logg)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}

	plain := renderer.drawWord("hola", 100, 640, 0.5, 1.25, false)
	if !strings.Contains(plain, "fontcolor=white") || !strings.Contains(plain, "between(t,0.500,1.250)") {
		t.Fatalf("unexpected plain filter %q", plain)
	}
	accent := renderer.drawWord("clave", 100, 640, 1.25, 2, true)
	if !strings.Contains(accent, "fontcolor=yellow") {
		t.Fatalf("expected accent color, got %q", accent)
	}
}

func TestEscapeDrawtext(t *testing.T) {
	t.Parallel()

	escaped := escapeDrawtext("it's 50%: ok,")
	for _, fragment := range []string{`\\\'`, `\%`, `\:`, `\,`} {
		if !strings.Contains(escaped, fragment) {
			t.Fatalf("expected %q in %q", fragment, escaped)
		}
	}
}
