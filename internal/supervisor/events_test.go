package supervisor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-pm/internal/record"
)

type captured struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct{ msgs []captured }

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.msgs = append(f.msgs, captured{topic, payload, qos, retained})
	return nil
}

func TestMQTTEventsPublishOutcome(t *testing.T) {
	pub := &fakePublisher{}
	events := NewMQTTEvents(pub, mqtt.NewTopics("graypm"), 1)

	r := record.Record{ID: 3, Name: "web", PID: 77}
	if err := events.PublishOutcome(newOutcome(OpStart, Started, r, "started")); err != nil {
		t.Fatalf("PublishOutcome() error = %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.topic != "graypm/process/3/event" {
		t.Errorf("topic = %q, want %q", msg.topic, "graypm/process/3/event")
	}
	if msg.qos != 1 || msg.retained {
		t.Errorf("qos=%d retained=%v, want 1 and false", msg.qos, msg.retained)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.payload, &body); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if _, err := uuid.Parse(body["event_id"].(string)); err != nil {
		t.Errorf("event_id %v is not a uuid: %v", body["event_id"], err)
	}
	if body["code"] != string(Started) || body["op"] != OpStart {
		t.Errorf("code/op = %v/%v, want started/start", body["code"], body["op"])
	}
	if _, ok := body["record"]; ok {
		t.Error("event payload should not embed the full record")
	}
}

func TestDispatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	r := h.create(t, record.Definition{Name: "disp", Cmd: record.Line("sleep 100")})

	if o := one(t, h.sup.Dispatch(ctx, OpStart, "disp")); o.Code != Started {
		t.Errorf("Dispatch(start) = %s, want %s", o.Code, Started)
	}
	if o := one(t, h.sup.Dispatch(ctx, OpReset, "disp")); o.Code != ResetDone {
		t.Errorf("Dispatch(reset) = %s, want %s", o.Code, ResetDone)
	}
	if o := one(t, h.sup.Dispatch(ctx, "rm", "disp")); o.Code != Removed {
		t.Errorf("Dispatch(rm) = %s, want %s", o.Code, Removed)
	}
	if _, err := h.tbl.Get(ctx, r.ID); err == nil {
		t.Error("record still stored after rm")
	}
	if o := one(t, h.sup.Dispatch(ctx, "explode", "all")); o.Code != Invalid {
		t.Errorf("Dispatch(explode) = %s, want %s", o.Code, Invalid)
	}
}
