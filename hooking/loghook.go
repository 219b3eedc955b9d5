package hooking

import (
	"fmt"
	"log"
)

// LogHook writes every hook invocation as one line into a logger.
type LogHook struct {
	*log.Logger
}

// NewLogHook returns a LogHook that writes into the logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func writes the position and the item. The detail follows when present.
func (h *LogHook) Func(ctx HookCtx) {
	if ctx.Detail == nil {
		h.Printf("%s: %s", ctx.Pos.Name, describe(ctx.Item))
		return
	}

	h.Printf("%s: %s (%s)", ctx.Pos.Name,
		describe(ctx.Item), describe(ctx.Detail))
}

func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	return fmt.Sprintf("%v", v)
}
