package spreadsheet

import (
	"context"
	"log/slog"
)

// nopHandler discards all records. Enabled returns false so callers skip
// building attributes entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// addressAttrs renders addresses for a log attribute
func addressAttrs(key string, addrs []CellAddress) slog.Attr {
	labels := make([]string, len(addrs))
	for i, addr := range addrs {
		labels[i] = addr.String()
	}
	return slog.Any(key, labels)
}
