// Package mqtt connects the graypm daemon to an MQTT broker.
//
// The daemon uses the broker for two things:
//   - publishing a lifecycle event for every supervisor outcome, on
//     <prefix>/process/<id>/event, and its own online/offline status on
//     <prefix>/system/status (retained, with a Last Will for crashes)
//   - receiving control commands on <prefix>/command/<op>, whose payload is
//     a process selector
//
// The client reconnects with exponential backoff and restores its
// subscriptions after every reconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Subscribe(topics.AllCommands(), 1, handle)
package mqtt
