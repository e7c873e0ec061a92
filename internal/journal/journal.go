package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/eventbus"
	"github.com/annel0/mapcoord/internal/logging"
)

// Сколько последних дельт хранится на предмет для отмены
const historyDepth = 64

// Config параметры журнала
type Config struct {
	Source     string        // имя узла в конверте события
	Capacity   int           // при заполнении буфера пачка отправляется сразу
	FlushEvery time.Duration // 0 - только ручной Flush
}

// Journal накапливает дельты перемещений и отправляет их пачками через EventBus.
// Для каждого предмета хранится история для Undo.
type Journal struct {
	mu      sync.Mutex
	buf     []Entry
	history map[uint64][]coord.Position

	cfg   Config
	bus   eventbus.EventBus
	codec Codec
	log   *logging.Logger

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// New создаёт журнал. При cfg.FlushEvery > 0 запускается фоновая отправка.
func New(bus eventbus.EventBus, codec Codec, cfg Config) (*Journal, error) {
	if codec == nil {
		var err error
		if codec, err = NewCodec("none", false); err != nil {
			return nil, err
		}
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
	if cfg.Source == "" {
		cfg.Source = "mapcoord"
	}

	j := &Journal{
		history: make(map[uint64][]coord.Position),
		cfg:     cfg,
		bus:     bus,
		codec:   codec,
		log:     logging.GetJournalLogger(),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.FlushEvery > 0 {
		go j.loop()
	} else {
		close(j.done)
	}
	return j, nil
}

// Codec возвращает кодек журнала
func (j *Journal) Codec() Codec { return j.codec }

// Record добавляет дельту. Кадр кодируется сразу, чтобы строгий кодек
// отверг дельту до попадания в буфер.
func (j *Journal) Record(ctx context.Context, itemID uint64, delta coord.Position) error {
	entry := Entry{ItemID: itemID, Delta: delta}
	if _, err := j.codec.Encode([]Entry{entry}); err != nil {
		logging.LogCodecReject("journal", err)
		return err
	}

	j.mu.Lock()
	j.buf = append(j.buf, entry)
	h := append(j.history[itemID], delta)
	if len(h) > historyDepth {
		h = h[len(h)-historyDepth:]
	}
	j.history[itemID] = h
	full := len(j.buf) >= j.cfg.Capacity
	j.mu.Unlock()

	if full {
		return j.Flush(ctx)
	}
	return nil
}

// RecordUndo отправляет отмену другим узлам, не трогая историю.
// Обратная дельта может выйти за относительный домен (-8192 -> +8192),
// поэтому она разбивается на шаги внутри домена.
func (j *Journal) RecordUndo(ctx context.Context, itemID uint64, inverse coord.Position) error {
	steps := splitDelta(inverse)
	entries := make([]Entry, len(steps))
	for i, step := range steps {
		entries[i] = Entry{ItemID: itemID, Delta: step}
	}
	if _, err := j.codec.Encode(entries); err != nil {
		logging.LogCodecReject("journal", err)
		return err
	}

	j.mu.Lock()
	j.buf = append(j.buf, entries...)
	full := len(j.buf) >= j.cfg.Capacity
	j.mu.Unlock()

	if full {
		return j.Flush(ctx)
	}
	return nil
}

// splitDelta делит дельту на шаги, каждый из которых упаковывается без усечения.
// Сумма шагов равна исходной дельте.
func splitDelta(delta coord.Position) []coord.Position {
	d := coord.DomainOf(coord.Relative)
	var steps []coord.Position
	for {
		step := coord.Position{
			X: clamp(delta.X, d.Min.X, d.Max.X),
			Y: clamp(delta.Y, d.Min.Y, d.Max.Y),
			Z: clamp(delta.Z, d.Min.Z, d.Max.Z),
		}
		steps = append(steps, step)
		delta = delta.Sub(step)
		if delta.IsZero() {
			return steps
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Undo снимает последнюю дельту предмета и возвращает обратную ей
func (j *Journal) Undo(itemID uint64) (coord.Position, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	h := j.history[itemID]
	if len(h) == 0 {
		return coord.Position{}, false
	}
	last := h[len(h)-1]
	if len(h) == 1 {
		delete(j.history, itemID)
	} else {
		j.history[itemID] = h[:len(h)-1]
	}
	return coord.Position{}.Sub(last), true
}

// Pending возвращает число неотправленных дельт
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buf)
}

// Flush отсылает накопленные дельты единым сообщением DeltaBatch.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	if len(j.buf) == 0 {
		j.mu.Unlock()
		return nil
	}
	entries := make([]Entry, len(j.buf))
	copy(entries, j.buf)
	j.buf = j.buf[:0]
	j.mu.Unlock()

	payload, err := j.codec.Encode(entries)
	if err != nil {
		j.requeue(entries)
		return fmt.Errorf("кодирование пачки: %w", err)
	}

	if j.bus == nil {
		return nil
	}
	env := eventbus.NewEnvelope(j.cfg.Source, eventbus.EventDeltaBatch, 5, payload)
	env.Metadata = map[string]string{"codec": j.codec.Name()}
	if err := j.bus.Publish(ctx, env); err != nil {
		j.requeue(entries)
		j.log.Warn("Journal publish error: %v", err)
		return fmt.Errorf("публикация пачки: %w", err)
	}
	j.log.Debug("Journal: отправлено %d дельт (%d байт, %s)", len(entries), len(payload), j.codec.Name())
	return nil
}

// requeue возвращает неотправленную пачку в начало буфера
func (j *Journal) requeue(entries []Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = append(entries, j.buf...)
}

func (j *Journal) loop() {
	defer close(j.done)
	ticker := time.NewTicker(j.cfg.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = j.Flush(ctx)
			cancel()
		case <-j.quit:
			return
		}
	}
}

// Stop завершает фоновую отправку и отправляет остаток.
func (j *Journal) Stop(ctx context.Context) error {
	j.once.Do(func() { close(j.quit) })
	<-j.done
	return j.Flush(ctx)
}
