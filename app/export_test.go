// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package app

import "github.com/warthog618/gpioplex"

type edgeReaderOption func(gpioplex.AsyncReader) gpioplex.AsyncReader

func (o edgeReaderOption) applyOption(ao *Options) {
	ao.edgeReader = o
}

// WithEdgeReader wraps the reader used for the input line events.
func WithEdgeReader(wrap func(gpioplex.AsyncReader) gpioplex.AsyncReader) Option {
	return edgeReaderOption(wrap)
}
