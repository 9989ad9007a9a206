package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/pricescout/internal/domain"
)

// streamSSE renders a search's event channel as a server-sent event
// stream. It returns when the channel closes (terminal event delivered),
// the client disconnects, or an event fails to serialize. Idle gaps are
// bridged with comment heartbeats so proxies keep the connection open.
func streamSSE(c *gin.Context, events <-chan domain.Event, heartbeat time.Duration) {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(c, ev); err != nil {
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Type, payload)
	return err
}
