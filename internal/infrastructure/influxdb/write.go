package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementCardOps is the measurement holding one point per card change.
const MeasurementCardOps = "card_operations"

// CardOperation builds a card_operations point. Owner and operation are
// tags; the card id and amount are fields so they do not inflate series
// cardinality.
func CardOperation(operation, owner string, cardID int64, amount float64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementCardOps,
		map[string]string{
			"operation": operation,
			"owner":     owner,
		},
		map[string]any{
			"card_id": cardID,
			"amount":  amount,
		},
		at,
	)
}

// WriteCardOperation queues a card_operations point.
func (c *Client) WriteCardOperation(operation, owner string, cardID int64, amount float64, at time.Time) {
	c.WritePoint(CardOperation(operation, owner, cardID, amount, at))
}

// WritePoint queues an arbitrary point. Dropped when the client is closed.
func (c *Client) WritePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}
