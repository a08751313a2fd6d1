// Package influxdb records card operations as InfluxDB time-series points.
//
// Each create, update and delete becomes one point in the card_operations
// measurement, tagged by operation and owner, carrying the card id and
// amount as fields. Writes are batched according to influxdb.batch_size and
// influxdb.flush_interval.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteCardOperation("created", "sarah1", 99, 123.45, time.Now())
//
// Write failures are asynchronous and reported through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
