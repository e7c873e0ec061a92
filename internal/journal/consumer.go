package journal

import (
	"context"

	"github.com/annel0/mapcoord/internal/eventbus"
	"github.com/annel0/mapcoord/internal/logging"
)

// ApplyFunc применяет одну дельту на принимающей стороне
type ApplyFunc func(ctx context.Context, e Entry) error

// Consumer слушает DeltaBatch сообщения других узлов и применяет дельты.
type Consumer struct {
	sub   eventbus.Subscription
	codec Codec
	apply ApplyFunc
	self  string
}

// NewConsumer подписывается на пачки. Пачки с source == self пропускаются.
func NewConsumer(bus eventbus.EventBus, codec Codec, self string, apply ApplyFunc) (*Consumer, error) {
	c := &Consumer{codec: codec, apply: apply, self: self}
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.EventDeltaBatch}}, c.handle)
	if err != nil {
		return nil, err
	}
	c.sub = sub
	return c, nil
}

func (c *Consumer) handle(ctx context.Context, ev *eventbus.Envelope) {
	if ev.Source == c.self {
		return
	}
	if name := ev.Metadata["codec"]; name != "" && name != c.codec.Name() {
		logging.Warn("Journal consumer: пачка %s со сжатием %s, ожидалось %s", ev.ID, name, c.codec.Name())
		return
	}

	entries, err := c.codec.Decode(ev.Payload)
	if err != nil {
		logging.Warn("Journal consumer decode error: %v", err)
		return
	}

	logging.Debug("Journal consumer: %d дельт от %s", len(entries), ev.Source)
	for i, e := range entries {
		if err := c.apply(ctx, e); err != nil {
			logging.Warn("Journal consumer: ошибка применения дельты %d: %v", i, err)
		}
	}
}

// Stop отписывается от шины
func (c *Consumer) Stop() { c.sub.Unsubscribe() }
