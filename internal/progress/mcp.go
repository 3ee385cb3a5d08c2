package progress

import (
	"context"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ProgressNotifier is the slice of an MCP server session the sink needs.
// *mcp.ServerSession satisfies it.
type ProgressNotifier interface {
	NotifyProgress(ctx context.Context, params *mcppkg.ProgressNotificationParams) error
}

// MCPSink publishes progress on the MCP notifications/progress channel and
// delegates every event to an inner sink (typically the log sink). Notify
// failures are logged and swallowed.
type MCPSink struct {
	session  ProgressNotifier
	delegate Sink
}

// NewMCPSink composes an MCP notification sink over a delegate.
func NewMCPSink(session ProgressNotifier, delegate Sink) *MCPSink {
	if delegate == nil {
		delegate = LogSink{}
	}
	return &MCPSink{session: session, delegate: delegate}
}

func (s *MCPSink) Publish(ctx context.Context, e Event) {
	s.delegate.Publish(ctx, e)
	if s.session == nil {
		return
	}
	msg := e.Message
	if msg == "" {
		msg = e.Label
	}
	if string(e.Status) != "" {
		msg = msg + " [" + string(e.Status) + "]"
	}
	params := &mcppkg.ProgressNotificationParams{
		ProgressToken: e.ID,
		Progress:      e.Completed,
		Total:         e.Total,
		Message:       msg,
	}
	if len(e.Attrs) > 0 {
		meta := make(map[string]any, len(e.Attrs)+1)
		for k, v := range e.Attrs {
			meta[k] = v
		}
		meta["status"] = string(e.Status)
		params.Meta = meta
	}
	if err := s.session.NotifyProgress(ctx, params); err != nil {
		log.Warn().Err(err).Str("id", e.ID).Msg("mcp_progress_notify_failed")
	}
}
