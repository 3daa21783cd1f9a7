package cmd

import "os"

// resumeSignals is empty on Windows, which has no resume signal; the
// guard relies on its interval there.
var resumeSignals []os.Signal
