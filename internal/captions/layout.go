package captions

import (
	"math/rand"
	"sort"
	"strings"

	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

// WordCue is one positioned, timed word of the caption timeline. Start and
// End are seconds from the beginning of the narration.
type WordCue struct {
	Text        string  `json:"text"`
	Line        int     `json:"line"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Highlighted bool    `json:"highlighted"`
}

// Canvas is the target video frame in pixels.
type Canvas struct {
	Width  int
	Height int
}

// Measurer reports the rendered pixel width of a word. Rendering backends
// plug in their real font metrics; tests use the fixed-width implementation.
type Measurer interface {
	WordWidth(word string) int
}

// FixedWidthMeasurer approximates monospace metrics: every rune occupies
// CharWidth pixels.
type FixedWidthMeasurer struct {
	CharWidth int
}

func (m FixedWidthMeasurer) WordWidth(word string) int {
	return len([]rune(word)) * m.CharWidth
}

// HighlightPolicy picks which word indexes of a line render in the accent
// color. Implementations must be deterministic for a given engine instance.
type HighlightPolicy interface {
	Pick(lineIndex, wordCount, count int) []int
}

// SeededHighlight derives a per-line random source from a fixed seed, so the
// same seed and script always highlight the same words.
type SeededHighlight struct {
	Seed int64
}

func (p SeededHighlight) Pick(lineIndex, wordCount, count int) []int {
	if count > wordCount {
		count = wordCount
	}
	if count <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(p.Seed + int64(lineIndex)))
	picked := rng.Perm(wordCount)[:count]
	sort.Ints(picked)
	return picked
}

// Params fixes the geometry of the layout.
type Params struct {
	Canvas         Canvas
	WordSpacing    int
	LineSpacing    int
	TopOffset      int
	LineHeight     int
	HighlightCount int
}

// Engine lays out narration text into a caption timeline. It has no side
// effects; identical inputs produce identical output.
type Engine struct {
	params    Params
	measurer  Measurer
	highlight HighlightPolicy
}

// NewEngine builds a layout engine.
func NewEngine(params Params, measurer Measurer, highlight HighlightPolicy) (*Engine, error) {
	if params.Canvas.Width <= 0 || params.Canvas.Height <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "canvas dimensions must be positive")
	}
	if params.LineSpacing <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line spacing must be positive")
	}
	if measurer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "text measurer is required")
	}
	if highlight == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "highlight policy is required")
	}
	return &Engine{params: params, measurer: measurer, highlight: highlight}, nil
}

// SplitScript breaks narration text into caption lines of at most
// wordsPerLine words, also breaking after sentence-ending punctuation.
func SplitScript(text string, wordsPerLine int) []string {
	if wordsPerLine <= 0 {
		wordsPerLine = 4
	}
	var lines []string
	var current []string
	for _, word := range strings.Fields(text) {
		current = append(current, word)
		if len(current) >= wordsPerLine || strings.HasSuffix(word, ".") ||
			strings.HasSuffix(word, "?") || strings.HasSuffix(word, "!") {
			lines = append(lines, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

// Layout distributes totalDuration across lines proportionally to their word
// counts, gives every word of a line an equal slice, and computes centered
// screen coordinates. It fails without output when the input is invalid or
// the lines do not fit the canvas.
func (e *Engine) Layout(lines []string, totalDuration float64) ([]WordCue, error) {
	if totalDuration <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total duration must be positive")
	}

	split := make([][]string, 0, len(lines))
	totalWords := 0
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		split = append(split, words)
		totalWords += len(words)
	}
	if totalWords == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "script has no words")
	}

	lineHeight := e.params.LineHeight
	if lineHeight == 0 {
		lineHeight = e.params.LineSpacing
	}
	bottom := e.params.TopOffset + (len(split)-1)*e.params.LineSpacing + lineHeight
	if bottom > e.params.Canvas.Height {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caption lines exceed canvas height").
			WithDetails(map[string]int{"lines": len(split), "bottom": bottom, "canvas_height": e.params.Canvas.Height})
	}

	cues := make([]WordCue, 0, totalWords)
	cursor := 0.0
	for lineIdx, words := range split {
		lineDuration := totalDuration * float64(len(words)) / float64(totalWords)
		wordDuration := lineDuration / float64(len(words))

		widths := make([]int, len(words))
		lineWidth := 0
		for i, word := range words {
			widths[i] = e.measurer.WordWidth(word)
			lineWidth += widths[i]
		}
		lineWidth += e.params.WordSpacing * (len(words) - 1)
		if lineWidth > e.params.Canvas.Width {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "caption line exceeds canvas width").
				WithDetails(map[string]any{"line": lineIdx, "width": lineWidth, "canvas_width": e.params.Canvas.Width})
		}

		highlighted := make(map[int]bool)
		for _, idx := range e.highlight.Pick(lineIdx, len(words), e.params.HighlightCount) {
			highlighted[idx] = true
		}

		x := (e.params.Canvas.Width - lineWidth) / 2
		y := e.params.TopOffset + lineIdx*e.params.LineSpacing
		for i, word := range words {
			start := cursor
			cursor += wordDuration
			cues = append(cues, WordCue{
				Text:        word,
				Line:        lineIdx,
				Start:       start,
				End:         cursor,
				X:           x,
				Y:           y,
				Highlighted: highlighted[i],
			})
			x += widths[i] + e.params.WordSpacing
		}
	}
	return cues, nil
}

// MaxLinesPerScreen reports how many lines fit the canvas vertically with the
// engine's spacing.
func (e *Engine) MaxLinesPerScreen() int {
	lineHeight := e.params.LineHeight
	if lineHeight == 0 {
		lineHeight = e.params.LineSpacing
	}
	n := (e.params.Canvas.Height-e.params.TopOffset-lineHeight)/e.params.LineSpacing + 1
	if n < 1 {
		n = 1
	}
	return n
}

// LayoutPaged splits lines into consecutive screens that fit the canvas and
// lays out each screen with its proportional share of the narration, shifting
// word times so the screens play back to back without gaps. Line indexes in
// the output are global across screens.
func (e *Engine) LayoutPaged(lines []string, totalDuration float64) ([]WordCue, error) {
	if totalDuration <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total duration must be positive")
	}

	trimmed := make([]string, 0, len(lines))
	totalWords := 0
	for _, line := range lines {
		words := len(strings.Fields(line))
		if words == 0 {
			continue
		}
		trimmed = append(trimmed, line)
		totalWords += words
	}
	if totalWords == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "script has no words")
	}

	perScreen := e.MaxLinesPerScreen()
	cues := make([]WordCue, 0, totalWords)
	offset := 0.0
	lineBase := 0
	for start := 0; start < len(trimmed); start += perScreen {
		end := start + perScreen
		if end > len(trimmed) {
			end = len(trimmed)
		}
		screen := trimmed[start:end]

		screenWords := 0
		for _, line := range screen {
			screenWords += len(strings.Fields(line))
		}
		screenDuration := totalDuration * float64(screenWords) / float64(totalWords)

		screenCues, err := e.Layout(screen, screenDuration)
		if err != nil {
			return nil, err
		}
		for _, cue := range screenCues {
			cue.Line += lineBase
			cue.Start += offset
			cue.End += offset
			cues = append(cues, cue)
		}

		offset += screenDuration
		lineBase += len(screen)
	}
	return cues, nil
}
