package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// CLINarrator voices scripts by shelling out to edge-tts and measures the
// result with ffprobe.
type CLINarrator struct {
	cfg  config.MediaConfig
	logg *logger.Logger
}

// NewCLINarrator builds the narrator. The audio directory is created lazily
// on first use.
func NewCLINarrator(cfg config.MediaConfig, logg *logger.Logger) (*CLINarrator, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger is required")
	}
	return &CLINarrator{cfg: cfg, logg: logg}, nil
}

func (n *CLINarrator) Narrate(ctx context.Context, script, language string) (processing.Narration, error) {
	if strings.TrimSpace(script) == "" {
		return processing.Narration{}, pkgerrors.New(pkgerrors.CodeValidation, "script is empty")
	}

	audioDir := filepath.Join(n.cfg.StorageDir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return processing.Narration{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create audio dir")
	}
	outFile := filepath.Join(audioDir, uuid.NewString()+".mp3")

	cmd := exec.CommandContext(ctx, "edge-tts",
		"--voice", n.voiceFor(language),
		"--text", script,
		"--write-media", outFile,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return processing.Narration{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tts command failed").
			WithDetails(map[string]string{"output": string(output)})
	}

	duration, err := probeDuration(ctx, outFile)
	if err != nil {
		return processing.Narration{}, err
	}
	n.logg.Info(ctx, fmt.Sprintf("narration rendered: %.1fs", duration))
	return processing.Narration{AudioPath: outFile, Duration: duration}, nil
}

func (n *CLINarrator) voiceFor(language string) string {
	if n.cfg.TTSVoice != "" {
		return n.cfg.TTSVoice
	}
	if strings.HasPrefix(language, "en") {
		return "en-US-GuyNeural"
	}
	return "es-MX-JorgeNeural"
}

// probeDuration reads the container duration in seconds via ffprobe.
func probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "probe media duration")
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse probed duration")
	}
	return duration, nil
}
