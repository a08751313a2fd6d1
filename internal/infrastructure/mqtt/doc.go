// Package mqtt publishes card lifecycle events to an MQTT broker.
//
// Every create, update and delete is published as JSON on
//
//	<prefix>/cards/<owner>/<event>
//
// so downstream consumers can subscribe per owner with a single-level
// wildcard. The client also maintains a retained <prefix>/system/status
// message (online, graceful offline, or the broker-published last will).
//
// The connection auto-reconnects with exponential backoff between
// reconnect.initial_delay and reconnect.max_delay seconds. Publishing never
// blocks a request for longer than defaultPublishTimeout.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	svc := card.NewService(store, logger, mqtt.NewEventSink(client, logger))
package mqtt
