// Package logging builds the process logger.
package logging

import "go.uber.org/zap"

// New returns a configured zap logger. Debug mode switches to the
// human-readable development encoder at debug level.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
