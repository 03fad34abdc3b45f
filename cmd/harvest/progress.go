package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// progressPrinter redraws polled job progress on a single terminal line.
type progressPrinter struct {
	writer    io.Writer
	startTime time.Time
	percent   int
	message   string
	width     int
	started   bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{writer: w, startTime: time.Now(), percent: -1}
}

// Update redraws the line when the percentage or message changed.
// A negative percent prints the message alone.
func (p *progressPrinter) Update(percent int, message string) {
	if p.started && percent == p.percent && message == p.message {
		return
	}
	p.started = true
	p.percent = percent
	p.message = message
	p.report()
}

// Finish redraws the last state and ends the line.
func (p *progressPrinter) Finish() {
	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

func (p *progressPrinter) report() {
	elapsed := time.Since(p.startTime).Truncate(100 * time.Millisecond)
	var line string
	if p.percent >= 0 {
		line = fmt.Sprintf("Progress: %3d%% - %s (%s)", p.percent, p.message, elapsed)
	} else {
		line = fmt.Sprintf("%s (%s)", p.message, elapsed)
	}
	pad := ""
	if n := p.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	p.width = len(line)
	fmt.Fprintf(p.writer, "\r%s%s", line, pad)
}
