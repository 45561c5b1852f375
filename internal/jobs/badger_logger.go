// Mediasync - Jellyfin Sync and Session Tracking Job Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediasync

package jobs

import (
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

var _ badger.Logger = (*badgerLogger)(nil)

// badgerLogger routes BadgerDB's printf logging into zerolog. Badger info
// chatter (compactions, table flushes) is demoted to debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func newBadgerLogger(l zerolog.Logger) *badgerLogger {
	return &badgerLogger{logger: l}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error().Msgf(trimNewline(format), args...)
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn().Msgf(trimNewline(format), args...)
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Debug().Msgf(trimNewline(format), args...)
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Trace().Msgf(trimNewline(format), args...)
}

func trimNewline(format string) string {
	return strings.TrimRight(format, "\n")
}
