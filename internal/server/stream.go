package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/lupppig/notifyq/internal/events"
)

const (
	streamBuffer    = 100
	streamKeepAlive = 15 * time.Second
)

// handleStream sends delivery events as server-sent events until the client
// goes away. userId, messageId and channel query parameters filter the
// stream.
func (s *Server) handleStream(c *gin.Context) {
	channel := domain.Channel(c.Query("channel"))
	if channel != "" && !channel.Valid() {
		badRequest(c, "Invalid filter", "unknown channel "+string(channel))
		return
	}

	sub := &events.Subscriber{
		ID:        uuid.NewString(),
		UserID:    c.Query("userId"),
		MessageID: c.Query("messageId"),
		Channel:   channel,
		Events:    make(chan events.DeliveryEvent, streamBuffer),
	}
	s.deps.Hub.Subscribe(sub)
	defer s.deps.Hub.Unsubscribe(sub.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"subscriber": sub.ID})
	c.Writer.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent("delivery", ev)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
