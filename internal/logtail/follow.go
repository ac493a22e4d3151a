package logtail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
)

const readLimit = 1 << 20 // 1MB

// ConsoleURL returns the websocket URL of an instance console.
func ConsoleURL(base *url.URL, instanceID string) string {
	u := base.JoinPath("ws", "instances", instanceID, "console")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// FollowOptions configure Follow.
type FollowOptions struct {
	URL string
	// HTTPClient carries the session cookie jar. Its Timeout is ignored; the
	// stream lives until ctx ends.
	HTTPClient *http.Client
	Header     http.Header
	Logger     *slog.Logger
	// OnLine, when set, is called for every received line after it is added.
	OnLine func(string)
}

// Follow streams console output into ring until ctx is cancelled or the
// server closes the stream normally; both return nil. ring may be nil when
// OnLine consumes the lines.
func Follow(ctx context.Context, opts FollowOptions, ring *Ring) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dial := &websocket.DialOptions{HTTPHeader: opts.Header}
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		hc.Timeout = 0
		dial.HTTPClient = &hc
	}

	conn, _, err := websocket.Dial(ctx, opts.URL, dial)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)
	logger.Debug("console connected", "url", opts.URL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		for _, line := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\n") {
			line = strings.TrimRight(line, "\r")
			if ring != nil {
				ring.Add(line)
			}
			if opts.OnLine != nil {
				opts.OnLine(line)
			}
		}
	}
}
