package tui

import (
	"io"
	"os"
)

// BellNotifier raises operator attention with the terminal bell. It is
// best-effort and never blocks: a failed write is ignored.
type BellNotifier struct {
	out io.Writer
}

// NewBellNotifier creates a notifier writing to stdout.
func NewBellNotifier() *BellNotifier {
	return &BellNotifier{out: os.Stdout}
}

// Notify emits a single bell character.
func (n *BellNotifier) Notify() {
	if n == nil || n.out == nil {
		return
	}
	_, _ = n.out.Write([]byte("\a"))
}
