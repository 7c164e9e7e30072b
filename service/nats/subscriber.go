package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SubscribeOptions selects which receipts a subscription receives.
type SubscribeOptions struct {
	// Operation filters to one operation; empty means all.
	Operation string
	// Durable names a consumer that survives restarts; empty means ephemeral.
	Durable string
	// DeliverAll replays the whole stream instead of only new messages.
	DeliverAll bool
}

// FilterSubject returns the subject a subscription listens on.
func (o SubscribeOptions) FilterSubject() string {
	if o.Operation == "" {
		return StreamSubjects
	}
	return fmt.Sprintf("%s.%s", SubjectPrefix, o.Operation)
}

// Subscribe streams receipt events to handle until ctx is done. Messages that
// fail to decode are terminated; handler errors cause a redelivery.
func Subscribe(ctx context.Context, natsURL string, opts SubscribeOptions, handle func(*ReceiptEvent) error) error {
	nc, err := nats.Connect(natsURL, nats.Name("solxr-subscriber"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cfg := jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.FilterSubject(),
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if opts.DeliverAll {
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event ReceiptEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			_ = msg.Term()
			return
		}
		if err := handle(&event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}
