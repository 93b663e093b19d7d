package cli

import (
	"github.com/go-coders/modelbench/internal/engine"
	"github.com/go-coders/modelbench/pkg/util"
)

// consoleObserver prints run events to the terminal. Progress is reported
// in whole-percent steps to keep the output readable under many workers.
type consoleObserver struct {
	p        *util.Printer
	lastStep int
}

func newConsoleObserver(p *util.Printer) *consoleObserver {
	return &consoleObserver{p: p, lastStep: -1}
}

func (o *consoleObserver) Log(msg string) {
	o.p.Println(msg)
}

func (o *consoleObserver) Progress(pct float64) {
	step := int(pct)
	if step == o.lastStep {
		return
	}
	o.lastStep = step
	o.p.Printf("%s[%3d%%]%s\n", util.ColorGray, step, util.ColorReset)
}

// teeObserver fans events out to several observers, letting a run feed the
// console and the status server at once.
type teeObserver []engine.Observer

func (t teeObserver) Log(msg string) {
	for _, o := range t {
		o.Log(msg)
	}
}

func (t teeObserver) Progress(pct float64) {
	for _, o := range t {
		o.Progress(pct)
	}
}

var _ engine.Observer = (*consoleObserver)(nil)
