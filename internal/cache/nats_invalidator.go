package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/mapcoord/internal/logging"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator реализует Invalidator поверх NATS Pub/Sub.
// Свои сообщения и повторная доставка того же сообщения игнорируются.
type NATSInvalidator struct {
	conn    *nats.Conn
	config  InvalidatorConfig
	nodeID  string
	sub     *nats.Subscription
	handler InvalidationHandler

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	recentKeys map[messageKey]time.Time
	keysMutex  sync.Mutex

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig содержит конфигурацию NATS invalidator.
type InvalidatorConfig struct {
	NATSURL       string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	DedupeWindow  time.Duration
}

// InvalidationMessage - сообщение об инвалидации
type InvalidationMessage struct {
	ItemID    uint64    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

// messageKey однозначно определяет сообщение: узел, время отправки и предмет
type messageKey struct {
	nodeID string
	sentAt int64
	itemID uint64
}

func (c *InvalidatorConfig) applyDefaults() {
	if c.Subject == "" {
		c.Subject = "mapcoord.cache.invalidation"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = time.Second
	}
}

// NewNATSInvalidator подключается к NATS
func NewNATSInvalidator(config InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	config.applyDefaults()

	opts := []nats.Option{
		nats.Name("mapcoord-cache-" + nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := newInvalidator(config, nodeID)
	n.conn = conn
	n.startDedupeCleanup()

	logging.Info("NATS invalidator initialized: %s (subject: %s)", config.NATSURL, config.Subject)
	return n, nil
}

func newInvalidator(config InvalidatorConfig, nodeID string) *NATSInvalidator {
	config.applyDefaults()
	return &NATSInvalidator{
		config:     config,
		nodeID:     nodeID,
		stopCh:     make(chan struct{}),
		recentKeys: make(map[messageKey]time.Time),
	}
}

// PublishInvalidation отправляет уведомление другим узлам.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, itemID uint64) error {
	data, err := json.Marshal(InvalidationMessage{
		ItemID:    itemID,
		Timestamp: time.Now().UTC(),
		NodeID:    n.nodeID,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.conn.Publish(n.config.Subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	atomic.AddInt64(&n.publishedCount, 1)
	return nil
}

// SubscribeInvalidations подписывается на уведомления.
func (n *NATSInvalidator) SubscribeInvalidations(handler InvalidationHandler) error {
	n.handler = handler
	sub, err := n.conn.Subscribe(n.config.Subject, n.handleInvalidationMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	n.sub = sub
	return nil
}

// Close отписывается и закрывает соединение.
func (n *NATSInvalidator) Close() error {
	n.closeOnce.Do(func() {
		close(n.stopCh)
		n.wg.Wait()
		if n.sub != nil {
			_ = n.sub.Unsubscribe()
		}
		if n.conn != nil {
			n.conn.Close()
		}
	})
	return nil
}

// GetMetrics возвращает счетчики публикации и приема
func (n *NATSInvalidator) GetMetrics() map[string]int64 {
	return map[string]int64{
		"published": atomic.LoadInt64(&n.publishedCount),
		"received":  atomic.LoadInt64(&n.receivedCount),
		"errors":    atomic.LoadInt64(&n.errorsCount),
	}
}

func (n *NATSInvalidator) handleInvalidationMessage(msg *nats.Msg) {
	atomic.AddInt64(&n.receivedCount, 1)

	var m InvalidationMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}

	if m.NodeID == n.nodeID {
		return
	}
	if !n.markSeen(messageKey{nodeID: m.NodeID, sentAt: m.Timestamp.UnixNano(), itemID: m.ItemID}) {
		return
	}

	if n.handler != nil {
		if err := n.handler(m.ItemID); err != nil {
			atomic.AddInt64(&n.errorsCount, 1)
			logging.Error("Invalidation handler failed for item %d: %v", m.ItemID, err)
		}
	}
}

// markSeen возвращает false для повторной доставки уже обработанного сообщения.
// Новые инвалидации того же предмета всегда проходят.
func (n *NATSInvalidator) markSeen(key messageKey) bool {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	if _, ok := n.recentKeys[key]; ok {
		return false
	}
	n.recentKeys[key] = time.Now()
	return true
}

func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func (n *NATSInvalidator) cleanupDedupe() {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	now := time.Now()
	for id, ts := range n.recentKeys {
		if now.Sub(ts) > n.config.DedupeWindow {
			delete(n.recentKeys, id)
		}
	}
}
