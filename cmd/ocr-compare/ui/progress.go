package ui

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/troyyang/ocr-compare/internal/progress"
)

// ProgressBar wraps a progressbar instance for deterministic progress display.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar with the given total and description.
func NewProgressBar(total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int64) {
	_ = p.bar.Set64(current)
}

// Describe replaces the bar description.
func (p *ProgressBar) Describe(description string) {
	p.bar.Describe(description)
}

// Finish completes the progress bar.
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.spinner.Start()
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// UpdateMessage updates the spinner's message.
func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Suffix = " " + message
}

// Notifier shows orchestrator progress messages on the spinner.
func (s *Spinner) Notifier() progress.Notifier {
	return progress.Func{Fn: func(ev progress.Event) {
		if !ev.Completed {
			s.UpdateMessage(ev.Message)
		}
	}}
}

// StageBar renders a document's stage progress with mpb. It implements
// progress.Notifier.
type StageBar struct {
	mu      sync.Mutex
	p       *mpb.Progress
	bar     *mpb.Bar
	message string
}

// NewStageBar creates a bar for one document on a 0-100 scale.
func NewStageBar(name string) *StageBar {
	s := &StageBar{p: mpb.New(mpb.WithWidth(48), mpb.WithOutput(os.Stderr))}
	s.bar = s.p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.Percentage(decor.WC{W: 5}),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				s.mu.Lock()
				defer s.mu.Unlock()
				return s.message
			}, decor.WC{W: 2}),
		),
	)
	return s
}

func (s *StageBar) Update(_ context.Context, _ string, current, total int, message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
	s.bar.SetCurrent(int64(progress.Percentage(current, total)))
}

func (s *StageBar) Complete(_ context.Context, success bool, message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
	if success {
		s.bar.SetCurrent(100)
		return
	}
	s.bar.Abort(false)
}

// Wait flushes the bar. It must be called once processing has returned.
func (s *StageBar) Wait() {
	if !s.bar.Completed() && !s.bar.Aborted() {
		s.bar.Abort(false)
	}
	if IsTerminal() {
		s.p.Wait()
		return
	}
	s.p.Shutdown()
}
