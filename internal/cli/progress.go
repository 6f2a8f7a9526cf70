package cli

import (
	"fmt"
	"io"
	"time"

	"devservices/internal/orchestrator"

	"github.com/briandowns/spinner"
)

// Progress shows a spinner whose suffix follows state change events.
type Progress struct {
	s    *spinner.Spinner
	done chan struct{}
}

// StartProgress starts a spinner on w labelled with title. It is a no-op
// progress when quiet is set.
func StartProgress(w io.Writer, title string, events <-chan orchestrator.StateChangedEvent, quiet bool) *Progress {
	p := &Progress{done: make(chan struct{})}
	if quiet {
		return p
	}

	p.s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	p.s.Suffix = " " + title
	p.s.Start()

	go func() {
		for {
			select {
			case <-p.done:
				return
			case ev := <-events:
				suffix := fmt.Sprintf(" %s: %s is %s", title, ev.Name, ev.NewState)
				p.s.Lock()
				p.s.Suffix = suffix
				p.s.Unlock()
			}
		}
	}()
	return p
}

// Stop stops the spinner and prints final, if any, in its place.
func (p *Progress) Stop(final string) {
	close(p.done)
	if p.s == nil {
		return
	}
	if final != "" {
		p.s.FinalMSG = final + "\n"
	}
	p.s.Stop()
}
