package broker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

func mustEvent(typ string) Event {
	e, err := NewEvent(typ, "round-1", "", map[string]int{"number": 1})
	if err != nil {
		panic(err)
	}
	return e
}

func receive(ch <-chan Event) (Event, bool) {
	select {
	case e, ok := <-ch:
		return e, ok
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

func TestInMemoryBroker(t *testing.T) {
	Convey("Given an in-memory broker", t, func() {
		ctx := context.Background()
		b := NewInMemoryBroker(WithSubscriberBuffer(2))
		defer b.Close()

		Convey("Every subscriber receives a published event", func() {
			a, cancelA := b.Subscribe(ctx)
			defer cancelA()
			c, cancelC := b.Subscribe(ctx)
			defer cancelC()
			So(b.Subscribers(), ShouldEqual, 2)

			So(b.Publish(ctx, mustEvent(TypeRoundOpened)), ShouldBeNil)

			got, ok := receive(a)
			So(ok, ShouldBeTrue)
			So(got.Type, ShouldEqual, TypeRoundOpened)
			got, ok = receive(c)
			So(ok, ShouldBeTrue)
			So(got.RoundID, ShouldEqual, "round-1")
		})

		Convey("A slow subscriber drops instead of blocking", func() {
			ch, cancel := b.Subscribe(ctx)
			defer cancel()

			done := make(chan struct{})
			go func() {
				for i := 0; i < 10; i++ {
					_ = b.Publish(ctx, mustEvent(TypePredictionSubmitted))
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("publish blocked on a full subscriber")
			}
			So(len(ch), ShouldEqual, 2)
		})

		Convey("Cancel closes the channel and unregisters", func() {
			ch, cancel := b.Subscribe(ctx)
			cancel()
			cancel()
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			So(b.Subscribers(), ShouldEqual, 0)
		})

		Convey("A done context unregisters the subscriber", func() {
			cctx, stop := context.WithCancel(ctx)
			ch, _ := b.Subscribe(cctx)
			stop()
			_, ok := receive(ch)
			So(ok, ShouldBeFalse)
		})

		Convey("Close ends every subscription and rejects publishes", func() {
			ch, _ := b.Subscribe(ctx)
			So(b.Close(), ShouldBeNil)
			_, ok := <-ch
			So(ok, ShouldBeFalse)
			So(errors.Is(b.Publish(ctx, mustEvent(TypeRoundClosed)), ErrClosed), ShouldBeTrue)

			late, _ := b.Subscribe(ctx)
			_, ok = <-late
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEventCodec(t *testing.T) {
	Convey("Events survive the wire encoding", t, func() {
		e := mustEvent(TypeRoundScored)
		data, err := EncodeEvent(e)
		So(err, ShouldBeNil)

		back, err := DecodeEvent(data)
		So(err, ShouldBeNil)
		So(back.ID, ShouldEqual, e.ID)
		So(back.Type, ShouldEqual, TypeRoundScored)
		So(string(back.Data), ShouldEqual, `{"number":1}`)

		_, err = DecodeEvent([]byte(`{"id":"x"}`))
		So(err, ShouldNotBeNil)
		_, err = DecodeEvent([]byte(`not json`))
		So(err, ShouldNotBeNil)
	})
}

func TestOpen(t *testing.T) {
	Convey("Open selects a backend by name", t, func() {
		b, err := Open(context.Background(), BackendMemory, RedisConfig{})
		So(err, ShouldBeNil)
		So(b.Close(), ShouldBeNil)

		_, err = Open(context.Background(), "kafka", RedisConfig{})
		So(errors.Is(err, ErrUnknownBackend), ShouldBeTrue)
	})
}

// Runs against a live server when OVERCALL_TEST_REDIS_ADDR is set.
func TestRedisBroker(t *testing.T) {
	addr := os.Getenv("OVERCALL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OVERCALL_TEST_REDIS_ADDR not set")
	}

	Convey("Two redis brokers on one channel see each other's events", t, func() {
		ctx := context.Background()
		cfg := RedisConfig{Addr: addr, Channel: "overcall-test-" + uuid.NewString()}

		a, err := NewRedisBroker(ctx, cfg)
		So(err, ShouldBeNil)
		defer a.Close()
		b, err := NewRedisBroker(ctx, cfg)
		So(err, ShouldBeNil)
		defer b.Close()

		ch, cancel := b.Subscribe(ctx)
		defer cancel()

		So(a.Publish(ctx, mustEvent(TypeLeaderboardUpdated)), ShouldBeNil)
		got, ok := receive(ch)
		So(ok, ShouldBeTrue)
		So(got.Type, ShouldEqual, TypeLeaderboardUpdated)
	})
}
