package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

type fakePublisher struct {
	data  []byte
	attrs map[string]string
	calls int
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	f.calls++
	f.data = data
	f.attrs = attrs
	if f.err != nil {
		return "", f.err
	}
	return "msg-1", nil
}

func TestRouteWithoutPublisher(t *testing.T) {
	r := NewRouter(nil, zerolog.Nop())
	if r.Route(context.Background(), "a/b.json", fmt.Errorf("boom")) {
		t.Error("Route without publisher must request redelivery")
	}
}

func TestRoutePublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRouter(pub, zerolog.Nop())

	if !r.Route(context.Background(), "a/b.json", fmt.Errorf("bad json")) {
		t.Fatal("Route should report success when the publish succeeds")
	}
	if pub.calls != 1 {
		t.Fatalf("publisher invoked %d times, want 1", pub.calls)
	}

	var env Envelope
	if err := json.Unmarshal(pub.data, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v", err)
	}
	if env.Filename != "a/b.json" {
		t.Errorf("envelope filename = %q, want a/b.json", env.Filename)
	}
	if env.Error != "bad json" {
		t.Errorf("envelope error = %q, want bad json", env.Error)
	}
	if env.ID == "" {
		t.Error("envelope ID must be set")
	}
	if env.Timestamp.IsZero() {
		t.Error("envelope timestamp must be set")
	}
	if pub.attrs["filename"] != "a/b.json" {
		t.Errorf("attrs filename = %q, want a/b.json", pub.attrs["filename"])
	}
}

func TestRoutePublishFailure(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("topic unavailable")}
	r := NewRouter(pub, zerolog.Nop())

	if r.Route(context.Background(), "a/b.json", fmt.Errorf("boom")) {
		t.Error("Route must request redelivery when the publish fails")
	}
}
