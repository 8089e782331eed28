// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalHandler is a slog.Handler writing to the systemd journal.
//
// Attributes become journal fields, upper cased and prefixed by any groups,
// so a key attribute in the device group is sent as DEVICE_KEY.
type JournalHandler struct {
	level  slog.Leveler
	id     string
	attrs  []groupedAttr
	groups []string
}

// groupedAttr is an attribute and the groups open when it was added.
type groupedAttr struct {
	groups []string
	a      slog.Attr
}

// NewJournalHandler creates a handler sending records at or above level to
// the journal with the given SYSLOG_IDENTIFIER.
func NewJournalHandler(level slog.Leveler, id string) *JournalHandler {
	return &JournalHandler{level: level, id: id}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	return journal.Send(r.Message, priority(r.Level), h.fields(r))
}

func (h *JournalHandler) fields(r slog.Record) map[string]string {
	f := map[string]string{"SYSLOG_IDENTIFIER": h.id}
	for _, ga := range h.attrs {
		addField(f, ga.groups, ga.a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addField(f, h.groups, a)
		return true
	})
	return f
}

// WithAttrs returns a handler including the attributes in every record.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]groupedAttr(nil), h.attrs...)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, groupedAttr{h.groups, a})
	}
	return &nh
}

// WithGroup returns a handler prefixing subsequent attributes with the group.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(append([]string(nil), h.groups...), name)
	return &nh
}

func priority(l slog.Level) journal.Priority {
	switch {
	case l >= slog.LevelError:
		return journal.PriErr
	case l >= slog.LevelWarn:
		return journal.PriWarning
	case l >= slog.LevelInfo:
		return journal.PriInfo
	}
	return journal.PriDebug
}

func addField(f map[string]string, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		gg := groups
		if a.Key != "" {
			gg = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			addField(f, gg, ga)
		}
		return
	}
	f[fieldName(groups, a.Key)] = fieldValue(a.Value)
}

// fieldName converts a key to a journal field name, which may only contain
// upper case letters, digits and underscores.
func fieldName(groups []string, key string) string {
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, key)
}

func fieldValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	}
	return v.String()
}
