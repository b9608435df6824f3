package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

const (
	baseColor   = "white"
	accentColor = "yellow"
)

// FFmpegRenderer composes the final vertical video: looped background,
// narration audio, and one drawtext overlay per caption word.
type FFmpegRenderer struct {
	cfg      config.MediaConfig
	captions config.CaptionsConfig
	logg     *logger.Logger
}

// NewFFmpegRenderer builds the renderer.
func NewFFmpegRenderer(cfg config.MediaConfig, captions config.CaptionsConfig, logg *logger.Logger) (*FFmpegRenderer, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger is required")
	}
	return &FFmpegRenderer{cfg: cfg, captions: captions, logg: logg}, nil
}

func (r *FFmpegRenderer) Render(ctx context.Context, req processing.RenderRequest) (string, error) {
	if req.AudioPath == "" || req.BackgroundPath == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "render request is missing media inputs")
	}
	if req.Duration <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "render duration must be positive")
	}

	videoDir := filepath.Join(r.cfg.StorageDir, "videos")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create video dir")
	}
	outFile := filepath.Join(videoDir, processing.Slug(req.Story.Title)+"_"+uuid.NewString()[:8]+".mp4")

	width := int(r.captions.CanvasWidth)
	height := int(r.captions.CanvasHeight)
	filters := []string{
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", width, height, width, height),
	}
	for _, cue := range req.Captions {
		filters = append(filters, r.drawWord(cue.Text, cue.X, cue.Y, cue.Start, cue.End, cue.Highlighted))
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-stream_loop", "-1",
		"-i", req.BackgroundPath,
		"-i", req.AudioPath,
		"-t", fmt.Sprintf("%.3f", req.Duration),
		"-vf", strings.Join(filters, ","),
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "libx264",
		"-preset", "medium",
		"-b:v", "4M",
		"-c:a", "aac",
		"-r", "30",
		"-pix_fmt", "yuv420p",
		outFile,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ffmpeg render failed").
			WithDetails(map[string]string{"output": tail(string(output))})
	}

	r.logg.Info(ctx, "video rendered: "+outFile)
	return outFile, nil
}

func (r *FFmpegRenderer) drawWord(word string, x, y int, start, end float64, highlighted bool) string {
	color := baseColor
	if highlighted {
		color = accentColor
	}
	return fmt.Sprintf(
		"drawtext=text='%s':x=%d:y=%d:fontsize=%d:fontcolor=%s:borderw=3:bordercolor=black:enable='between(t,%.3f,%.3f)'",
		escapeDrawtext(word), x, y, int(r.captions.FontSize), color, start, end,
	)
}

// escapeDrawtext quotes the characters ffmpeg's filter parser treats
// specially.
func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\\\'`,
		`:`, `\:`,
		`%`, `\%`,
		`,`, `\,`,
	)
	return replacer.Replace(text)
}

func tail(output string) string {
	const max = 2000
	if len(output) <= max {
		return output
	}
	return output[len(output)-max:]
}
