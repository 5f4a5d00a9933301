package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/messaging"
)

type captured struct {
	key string
	msg messaging.AmqpMessage
}

type fakeAmqp struct {
	published []captured
	err       error
}

func (f *fakeAmqp) PublishMessage(ctx context.Context, routingKey string, message messaging.AmqpMessage) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected publish deadline")
	}
	f.published = append(f.published, captured{key: routingKey, msg: message})
	return f.err
}

func TestRoomPublisherRoundTrip(t *testing.T) {
	fake := &fakeAmqp{}
	p := NewRoomPublisher(fake, nil)
	p.now = func() time.Time { return time.UnixMilli(1730000000000) }

	owner := "p1"
	view := &domain.RoomView{
		RoomCode:     "SKI",
		OwnerID:      &owner,
		Destination:  &domain.Destination{Label: "Val Thorens", Lat: 45.3, Lon: 6.58},
		Participants: []domain.ParticipantView{{ID: "p1"}, {ID: "p2"}},
	}

	if err := p.PublishMemberJoined(context.Background(), view, "p2"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fake.published) != 1 || fake.published[0].key != messaging.EventMemberJoined {
		t.Fatalf("unexpected publications %+v", fake.published)
	}

	msg := fake.published[0].msg
	if msg.ID == "" || msg.OwnerID != "p1" {
		t.Fatalf("unexpected envelope %+v", msg)
	}

	body, _ := json.Marshal(msg)
	got, err := DecodeRoomEvent(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RoomCode != "SKI" || got.ParticipantID != "p2" || got.Participants != 2 || got.Destination != "Val Thorens" || got.TS != 1730000000000 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestRoomPublisherReturnsBrokerError(t *testing.T) {
	fake := &fakeAmqp{err: errors.New("channel closed")}
	p := NewRoomPublisher(fake, nil)

	if err := p.PublishRoomDeleted(context.Background(), "SKI", "p1"); err == nil {
		t.Fatalf("expected broker error")
	}
}

func TestDecodeRoomEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeRoomEvent([]byte("nope")); err == nil {
		t.Fatalf("expected error")
	}
}
