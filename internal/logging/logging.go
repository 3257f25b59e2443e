// Package logging configures AnICA's process-wide logging facade.
//
// Grounded on cmd/kanso-lsp/main.go's commonlog.Configure call: the teacher
// wires commonlog into its language server the same way a campaign wires it
// into log.txt.
package logging

import (
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Configure sets the process-wide maximum log verbosity (0 = errors only, up
// to 4 = debug), with output to stderr. It is safe to call once per
// process; campaigns that want a dedicated log.txt call ConfigureFile
// instead.
func Configure(verbosity int) {
	commonlog.Configure(verbosity, nil)
}

// ConfigureFile configures logging with output directed at path, used by the
// discover command to populate campaign_<idx>_<timestamp>/log.txt.
func ConfigureFile(verbosity int, path string) error {
	commonlog.Configure(verbosity, &path)
	return nil
}

// Logger is the subset of commonlog.Logger that AnICA components use.
type Logger = commonlog.Logger

// Get returns a named logger, e.g. logging.Get("discovery").
func Get(name string) Logger {
	return commonlog.GetLogger(name)
}

// Fallback is a Logger usable before Configure has run, writing to stderr.
func Fallback(name string) Logger {
	if l := Get(name); l != nil {
		return l
	}
	commonlog.Configure(1, nil)
	return Get(name)
}
