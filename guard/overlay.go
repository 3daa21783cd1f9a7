package guard

import "github.com/sirupsen/logrus"

// Overlay is the blocking UI the guard drives.
type Overlay interface {
	// Show blocks the UI with msg. retry offers a reconnect affordance.
	Show(msg string, retry bool)

	// Hide removes the overlay.
	Hide()
}

// LogOverlay renders overlay changes as log lines, for headless clients.
type LogOverlay struct {
	Log *logrus.Entry
}

func (o LogOverlay) Show(msg string, retry bool) {
	o.Log.WithField("retry", retry).Warn(msg)
}

func (o LogOverlay) Hide() {
	o.Log.Info("access granted")
}
