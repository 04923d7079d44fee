package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every graypm topic.
const DefaultTopicPrefix = "graypm"

// Topics builds graypm topic names under a prefix.
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix. An empty prefix means
// DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

func (t Topics) root() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus is the retained daemon online/offline topic.
//
// Example: graypm/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// ProcessEvent is the topic for lifecycle events of one record.
//
// Example: graypm/process/3/event
func (t Topics) ProcessEvent(id int) string {
	return fmt.Sprintf("%s/process/%d/event", t.root(), id)
}

// AllProcessEvents matches every record's events.
func (t Topics) AllProcessEvents() string {
	return t.root() + "/process/+/event"
}

// Command is the topic that triggers op on the selector in the payload.
//
// Example: graypm/command/restart
func (t Topics) Command(op string) string {
	return t.root() + "/command/" + op
}

// AllCommands matches every command topic.
func (t Topics) AllCommands() string {
	return t.root() + "/command/+"
}

// CommandOp extracts the operation from a command topic. ok is false when
// topic is not a command topic under this prefix.
func (t Topics) CommandOp(topic string) (op string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.root()+"/command/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
