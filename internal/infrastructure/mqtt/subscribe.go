package mqtt

import (
	"fmt"
)

// Subscribe routes messages on topic (wildcards allowed) to handler. The
// subscription is remembered and replayed after every reconnect.
//
//	err := client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        op, _ := topics.CommandOp(topic)
//	        return dispatch(op, string(payload))
//	    })
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := wait(c.client.Subscribe(topic, qos, c.dispatch(handler)), defaultPublishTimeout); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}
