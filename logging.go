package prefixdb

import (
	"context"
	"log/slog"
)

// logEvent writes a debug-level lifecycle event. Errors are returned to the
// caller and never logged here.
func (c *Connection) logEvent(ctx context.Context, event string, attrs ...slog.Attr) {
	if c == nil || c.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("prefix", c.prefix))
	c.logger.LogAttrs(ctx, slog.LevelDebug, event, attrs...)
}

// logEvent writes a debug-level factory event.
func (f *Factory) logEvent(ctx context.Context, event, name string) {
	if f == nil || f.options.Logger == nil {
		return
	}
	f.options.Logger.LogAttrs(ctx, slog.LevelDebug, event, slog.String("connection", name))
}
