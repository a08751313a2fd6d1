// Package events adapts card lifecycle events to the service's outbound
// channels: MQTT messages, InfluxDB points, Prometheus counters and the
// audit log.
//
// Sinks that talk to the network are wrapped in Async so a slow broker
// never holds up an HTTP request. Async buffers events in a bounded channel
// and drops (with a warning and a counter) when the buffer is full.
package events
