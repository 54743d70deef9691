package consumer_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/booklookup/internal/adapters/mq/broker"
	"github.com/okian/booklookup/internal/adapters/mq/consumer"
	"github.com/okian/booklookup/internal/adapters/mq/publisher"
	"github.com/okian/booklookup/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestConsumer(t *testing.T) {
	Convey("Given a consumer on an in-process channel", t, func() {
		gc := broker.NewGoChannel(16, watermill.NopLogger{})
		defer func() { _ = gc.Close() }()

		c, err := consumer.New(gc, "book-events", nil)
		So(err, ShouldBeNil)
		So(c.Start(context.Background()), ShouldBeNil)

		Convey("Published events are received and acked", func() {
			for _, key := range []string{"1", publisher.SearchKeyPrefix + "title"} {
				msg := message.NewMessage(watermill.NewUUID(), []byte(`{}`))
				msg.Metadata.Set(publisher.MetadataPartitionKey, key)
				So(gc.Publish("book-events", msg), ShouldBeNil)
			}

			deadline := time.Now().Add(2 * time.Second)
			for c.Received() < 2 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(c.Received(), ShouldEqual, 2)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			So(c.Stop(ctx), ShouldBeNil)
		})
	})

	Convey("New needs a subscriber", t, func() {
		_, err := consumer.New(nil, "book-events", nil)
		So(err, ShouldEqual, consumer.ErrNilSubscriber)
	})
}
