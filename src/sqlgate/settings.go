package sqlgate

import "log/slog"

// Options is a partial settings update for Configure. Nil fields retain their
// prior values, so Configure(Options{}) changes nothing.
type Options struct {
	LoggingEnabled     *bool
	Logger             *slog.Logger
	DateStringsEnabled *bool
}

// Configure applies a partial settings update. The update is shared by the
// dispatcher and both of its facets.
func (d *DB) Configure(opts Options) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	if opts.LoggingEnabled != nil {
		d.st.loggingEnabled = *opts.LoggingEnabled
	}
	if opts.Logger != nil {
		d.st.logger = opts.Logger
	}
	if opts.DateStringsEnabled != nil {
		d.st.dateStrings = *opts.DateStringsEnabled
	}
}

// LoggingEnabled reports the current global logging toggle.
func (d *DB) LoggingEnabled() bool {
	d.st.mu.RLock()
	defer d.st.mu.RUnlock()
	return d.st.loggingEnabled
}

// ForcedRollback reports whether the forced-rollback test mode is on.
func (d *DB) ForcedRollback() bool {
	d.st.mu.RLock()
	defer d.st.mu.RUnlock()
	return d.st.forcedRollback
}
