package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress from ProcessImages. Calls come from the
// collecting goroutine only.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnError(index int, err error)
	OnComplete()
}

// ConsoleProgress draws a one-line progress bar.
type ConsoleProgress struct {
	w        io.Writer
	width    int
	interval time.Duration

	mu    sync.Mutex
	start time.Time
	last  time.Time
}

// NewConsoleProgress writes to w, or stderr when w is nil.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgress{w: w, width: 40, interval: 100 * time.Millisecond}
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.last = time.Time{}
	_, _ = fmt.Fprintf(c.w, "processing %d images\n", total)
}

func (c *ConsoleProgress) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if done < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	if total <= 0 {
		return
	}
	filled := c.width * done / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	status := fmt.Sprintf("\r[%s] %d/%d", bar, done, total)
	if elapsed := now.Sub(c.start).Seconds(); elapsed > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(done)/elapsed)
	}
	_, _ = fmt.Fprint(c.w, status)
}

func (c *ConsoleProgress) OnError(index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\nimage %d failed: %v\n", index, err)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\ncompleted in %v\n", time.Since(c.start).Round(time.Millisecond))
}

// LogProgress reports progress through slog every Every images.
type LogProgress struct {
	Logger *slog.Logger
	Level  slog.Level
	Every  int

	start time.Time
	last  int
}

// NewLogProgress logs at level through logger, or slog.Default when nil.
func NewLogProgress(logger *slog.Logger, level slog.Level) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{Logger: logger, Level: level, Every: 10}
}

func (l *LogProgress) OnStart(total int) {
	l.start = time.Now()
	l.last = 0
	l.Logger.Log(context.Background(), l.Level, "batch started", "total", total)
}

func (l *LogProgress) OnProgress(done, total int) {
	if done-l.last < l.Every && done != total {
		return
	}
	l.last = done
	l.Logger.Log(context.Background(), l.Level, "batch progress",
		"done", done,
		"total", total,
		"elapsed", time.Since(l.start).Round(time.Millisecond))
}

func (l *LogProgress) OnError(index int, err error) {
	l.Logger.Error("image failed", "index", index, "error", err)
}

func (l *LogProgress) OnComplete() {
	l.Logger.Log(context.Background(), l.Level, "batch completed",
		"elapsed", time.Since(l.start).Round(time.Millisecond))
}
