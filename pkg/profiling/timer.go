// Package profiling records nested timing spans for the --timing flag.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stopper ends a timed span.
type Stopper interface {
	Stop() time.Duration
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	parent   *span
	children []*span
	profiler *Profiler
}

// Stop completes the span and returns its duration.
func (s *span) Stop() time.Duration {
	s.profiler.mu.Lock()
	defer s.profiler.mu.Unlock()
	s.duration = time.Since(s.start)
	if s.profiler.current == s {
		s.profiler.current = s.parent
	}
	return s.duration
}

// Profiler collects spans. Spans started while another is open nest under it.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	root    *span
	current *span
}

var defaultProfiler = &Profiler{}

// Enable turns on the global profiler.
func Enable() {
	defaultProfiler.Enable()
}

// Enable turns on the profiler. Calling it twice keeps the existing spans.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.root = &span{name: "root", start: time.Now(), profiler: p}
	p.current = p.root
}

// Start begins a span on the global profiler.
func Start(name string) Stopper {
	return defaultProfiler.Start(name)
}

// Start begins a new span; end it with Stop, typically via defer.
// When the profiler is disabled the returned Stopper only measures time.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return &noopStopper{start: time.Now()}
	}

	s := &span{name: name, start: time.Now(), parent: p.current, profiler: p}
	p.current.children = append(p.current.children, s)
	p.current = s
	return s
}

// Summarize prints the global span tree.
func Summarize(w io.Writer) {
	defaultProfiler.Summarize(w)
}

// Summarize prints a hierarchical summary of all spans to w.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || p.root == nil {
		return
	}
	if p.root.duration == 0 {
		p.root.duration = time.Since(p.root.start)
	}

	fmt.Fprintln(w, "\n--- Timing Profile ---")
	for _, child := range p.root.children {
		printSpan(w, child, 0, p.root.duration)
	}
	fmt.Fprintln(w, "----------------------")
}

func printSpan(w io.Writer, s *span, depth int, total time.Duration) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(s.duration) / float64(total) * 100
	}
	fmt.Fprintf(w, "%s- %s (%v, %.1f%%)\n", strings.Repeat("  ", depth), s.name,
		s.duration.Round(100*time.Microsecond), percentage)

	children := append([]*span(nil), s.children...)
	sort.Slice(children, func(i, j int) bool {
		return children[i].start.Before(children[j].start)
	})
	for _, child := range children {
		printSpan(w, child, depth+1, total)
	}
}

type noopStopper struct {
	start time.Time
}

func (s *noopStopper) Stop() time.Duration { return time.Since(s.start) }
