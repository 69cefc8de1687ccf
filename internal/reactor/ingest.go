package reactor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ChuLiYu/beaver-engine/internal/history"
	"github.com/ChuLiYu/beaver-engine/internal/slave"
)

// ingest records telemetry read off a slave's events pipe into the
// bounded per-driver history buffer, then re-publishes it as one
// envelope+blob frame pair per field.
func (c *Core) ingest(ev slave.Event) {
	now := time.Now()
	if c.History != nil {
		c.History.Record(ev.Driver, history.Entry{At: now, Fields: ev.Fields})
	}
	if c.Publisher == nil {
		return
	}
	for field, blob := range ev.Fields {
		encoded, err := json.Marshal(blob)
		if err != nil {
			log.Warn("marshal telemetry blob", "driver", ev.Driver, "field", field, "err", err)
			continue
		}
		envelope := fmt.Sprintf("%s %s %s", ev.Driver, field, formatEnvelopeTimestamp(now))
		c.Publisher.Publish(envelope, encoded)
	}
}

// formatEnvelopeTimestamp renders t as seconds with three decimal
// places, so prefix-based subscription filtering keeps working.
func formatEnvelopeTimestamp(t time.Time) string {
	return fmt.Sprintf("%.3f", float64(t.UnixNano())/1e9)
}
