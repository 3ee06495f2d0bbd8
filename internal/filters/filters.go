// Package filters holds the console filter bar state and its reducer.
//
// The console core never mutates filters; it receives the value produced by
// Reduce for the same action and evaluates visibility against it.
package filters

import (
	"github.com/snehjoshi/replayconsole/internal/types"
)

// Default returns the filter state a fresh console starts with: every level
// shown, no search text, node_modules messages shown.
func Default() types.Filters {
	return types.Filters{
		Error:       true,
		Warn:        true,
		Info:        true,
		Debug:       true,
		Log:         true,
		Text:        "",
		NodeModules: true,
	}
}

// CountedCauses lists the hidden-message causes that are reflected in the
// "N messages filtered" counters, in display order.
var CountedCauses = []string{
	types.FilterText,
	types.FilterError,
	types.FilterWarn,
	types.FilterLog,
	types.FilterInfo,
	types.FilterDebug,
	types.FilterNodeModules,
}

// IsCounted reports whether a hidden cause is reflected in the counters.
func IsCounted(cause string) bool {
	for _, c := range CountedCauses {
		if c == cause {
			return true
		}
	}
	return false
}

// Reduce applies a filter action to fs. Actions that do not touch filters
// return fs unchanged.
func Reduce(fs types.Filters, a types.Action) types.Filters {
	switch a.Type {
	case types.ActionFilterToggle:
		if p := boolField(&fs, a.Filter); p != nil {
			*p = !*p
		}
	case types.ActionFilterTextSet:
		fs.Text = a.Text
	case types.ActionFiltersClear:
		return Default()
	case types.ActionDefaultFiltersReset:
		// Only the level toggles go back to their defaults.
		text := fs.Text
		fs = Default()
		fs.Text = text
	}
	return fs
}

// LevelEnabled reports whether messages of level are shown. Unknown levels
// are never shown.
func LevelEnabled(fs types.Filters, level types.Level) bool {
	switch level {
	case types.LevelError:
		return fs.Error
	case types.LevelWarn:
		return fs.Warn
	case types.LevelInfo:
		return fs.Info
	case types.LevelDebug:
		return fs.Debug
	case types.LevelLog:
		return fs.Log
	}
	return false
}

// Enabled reports the value of a boolean filter by name.
func Enabled(fs types.Filters, name string) bool {
	if p := boolField(&fs, name); p != nil {
		return *p
	}
	return false
}

func boolField(fs *types.Filters, name string) *bool {
	switch name {
	case types.FilterError:
		return &fs.Error
	case types.FilterWarn:
		return &fs.Warn
	case types.FilterInfo:
		return &fs.Info
	case types.FilterDebug:
		return &fs.Debug
	case types.FilterLog:
		return &fs.Log
	case types.FilterNodeModules:
		return &fs.NodeModules
	}
	return nil
}
