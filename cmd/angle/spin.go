package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Spinner shows the progress of a batch on stderr while it runs.
type Spinner struct {
	frames  []string
	message string
	start   time.Time

	mu      sync.Mutex
	running bool

	stop   sync.Once
	ticker *time.Ticker
	done   chan struct{}
	w      io.Writer
}

func NewSpinner() *Spinner {
	return &Spinner{
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		ticker: time.NewTicker(time.Millisecond * 90),
		done:   make(chan struct{}),
		w:      os.Stderr,
	}
}

func (s *Spinner) SetMessage(msg string) {
	msg = strings.TrimSpace(msg)
	msg = strings.TrimRight(msg, ".")
	s.message = msg
}

func (s *Spinner) Run(fn func() error) error {
	s.Start()
	defer s.Stop()
	return fn()
}

func (s *Spinner) Stop() {
	s.stop.Do(func() {
		close(s.done)
		s.ticker.Stop()
		s.clearLine()
	})
}

func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.start = time.Now()
	go s.run()
}

func (s *Spinner) run() {
	for i := 0; ; i++ {
		select {
		case <-s.ticker.C:
			f := s.frames[i%len(s.frames)]
			elapsed := time.Since(s.start).Round(time.Millisecond * 100)
			line := fmt.Sprintf("\r%s %s... %s", f, s.message, elapsed)
			io.WriteString(s.w, line)
		case <-s.done:
			return
		}
	}
}

func (s *Spinner) clearLine() {
	io.WriteString(s.w, "\x1b[0G\x1b[2K\x1b[0G")
}
