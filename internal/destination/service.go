package destination

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/eventbus"
	"github.com/annel0/mapcoord/internal/journal"
	"github.com/annel0/mapcoord/internal/logging"
	"github.com/annel0/mapcoord/internal/metrics"
	"github.com/annel0/mapcoord/internal/problems"
	"github.com/annel0/mapcoord/internal/storage"
)

// ErrNothingToUndo - в журнале нет дельт предмета
var ErrNothingToUndo = errors.New("нет перемещений для отмены")

// Config настройки сервиса
type Config struct {
	Bounds coord.Bounds
	Strict bool   // отвергать координаты вне домена вместо усечения
	Source string // источник событий
}

// Deps необязательные зависимости; nil отключает соответствующую функцию
type Deps struct {
	Journal  *journal.Journal
	Bus      eventbus.EventBus
	Problems *problems.List
	Codec    *metrics.Codec
}

// Service управляет пунктами назначения телепортов.
// Позиции хранятся упакованными (Absolute), перемещения идут через журнал дельт.
// Изменения одного предмета выполняются последовательно; ShiftAll исключает все остальные.
type Service struct {
	repo storage.DestinationRepo
	cfg  Config
	deps Deps
	log  *logging.Logger

	shiftMu sync.RWMutex
	locksMu sync.Mutex
	locks   map[uint64]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

// NewService создает сервис поверх хранилища
func NewService(repo storage.DestinationRepo, cfg Config, deps Deps) *Service {
	if cfg.Source == "" {
		cfg.Source = "destination"
	}
	if cfg.Bounds == (coord.Bounds{}) {
		cfg.Bounds = coord.DefaultBounds()
	}
	if deps.Codec == nil {
		deps.Codec = metrics.NewCodec(nil)
	}
	return &Service{
		repo: repo,
		cfg:  cfg,
		deps:  deps,
		log:   logging.GetComponentLogger("destination"),
		locks: make(map[uint64]*itemLock),
	}
}

// lock захватывает предмет; возвращает функцию освобождения
func (s *Service) lock(itemID uint64) func() {
	s.shiftMu.RLock()

	s.locksMu.Lock()
	l, ok := s.locks[itemID]
	if !ok {
		l = &itemLock{}
		s.locks[itemID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, itemID)
		}
		s.locksMu.Unlock()

		s.shiftMu.RUnlock()
	}
}

// Strict сообщает, включена ли строгая упаковка
func (s *Service) Strict() bool { return s.cfg.Strict }

// Bounds возвращает границы карты
func (s *Service) Bounds() coord.Bounds { return s.cfg.Bounds }

// canonical приводит позицию к виду, в котором она будет сохранена
func (s *Service) canonical(pos coord.Position) (coord.Position, error) {
	if s.cfg.Strict {
		v, err := s.deps.Codec.PackStrict(coord.Absolute, pos)
		if err != nil {
			logging.LogCodecReject(s.cfg.Source, err)
			return coord.Position{}, err
		}
		return coord.UnpackAbsolute(v), nil
	}
	return coord.UnpackAbsolute(s.deps.Codec.Pack(coord.Absolute, pos)), nil
}

// Set задает пункт назначения; возвращает сохраненную позицию
func (s *Service) Set(ctx context.Context, itemID uint64, pos coord.Position) (coord.Position, error) {
	stored, err := s.canonical(pos)
	if err != nil {
		return coord.Position{}, err
	}
	defer s.lock(itemID)()
	if err := s.repo.Save(ctx, itemID, stored); err != nil {
		return coord.Position{}, fmt.Errorf("сохранение предмета %d: %w", itemID, err)
	}
	if stored != pos {
		s.log.Debug("Destination %d: %s усечена до %s", itemID, pos, stored)
	}
	return stored, nil
}

// Get возвращает пункт назначения или storage.ErrNotFound
func (s *Service) Get(ctx context.Context, itemID uint64) (coord.Position, error) {
	pos, ok, err := s.repo.Load(ctx, itemID)
	if err != nil {
		return coord.Position{}, err
	}
	if !ok {
		return coord.Position{}, fmt.Errorf("предмет %d: %w", itemID, storage.ErrNotFound)
	}
	return pos, nil
}

// List возвращает все пункты назначения
func (s *Service) List(ctx context.Context) (map[uint64]coord.Position, error) {
	return s.repo.List(ctx)
}

// Remove удаляет пункт назначения
func (s *Service) Remove(ctx context.Context, itemID uint64) error {
	defer s.lock(itemID)()
	return s.repo.Delete(ctx, itemID)
}

// Move сдвигает пункт назначения на дельту и пишет её в журнал
func (s *Service) Move(ctx context.Context, itemID uint64, delta coord.Position) (coord.Position, error) {
	if s.cfg.Strict {
		if _, err := s.deps.Codec.PackStrict(coord.Relative, delta); err != nil {
			logging.LogCodecReject(s.cfg.Source, err)
			return coord.Position{}, err
		}
	}
	// Вне строгого режима дельта усекается так же, как при записи в журнал
	delta = s.deps.Codec.Unpack(coord.Relative, s.deps.Codec.Pack(coord.Relative, delta))

	defer s.lock(itemID)()
	from, to, err := s.apply(ctx, itemID, delta)
	if err != nil {
		return coord.Position{}, err
	}

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Record(ctx, itemID, delta); err != nil {
			s.log.Warn("Destination %d: журнал: %v", itemID, err)
		}
	}
	s.publishMoved(ctx, itemID, from, to)
	return to, nil
}

// Undo отменяет последнее перемещение предмета
func (s *Service) Undo(ctx context.Context, itemID uint64) (coord.Position, error) {
	if s.deps.Journal == nil {
		return coord.Position{}, ErrNothingToUndo
	}

	defer s.lock(itemID)()
	inverse, ok := s.deps.Journal.Undo(itemID)
	if !ok {
		return coord.Position{}, fmt.Errorf("предмет %d: %w", itemID, ErrNothingToUndo)
	}
	from, to, err := s.apply(ctx, itemID, inverse)
	if err != nil {
		return coord.Position{}, err
	}

	if err := s.deps.Journal.RecordUndo(ctx, itemID, inverse); err != nil {
		s.log.Warn("Destination %d: журнал отмены: %v", itemID, err)
	}
	s.publishMoved(ctx, itemID, from, to)
	return to, nil
}

// Apply применяет дельту, пришедшую от другого узла, без записи в журнал
func (s *Service) Apply(ctx context.Context, e journal.Entry) error {
	defer s.lock(e.ItemID)()
	_, _, err := s.apply(ctx, e.ItemID, e.Delta)
	return err
}

// apply вызывается под блокировкой предмета
func (s *Service) apply(ctx context.Context, itemID uint64, delta coord.Position) (from, to coord.Position, err error) {
	from, err = s.Get(ctx, itemID)
	if err != nil {
		return from, to, err
	}
	if s.cfg.Strict {
		if err := coord.CheckDomain(coord.Absolute, from.Add(delta)); err != nil {
			logging.LogCodecReject(s.cfg.Source, err)
			return from, to, err
		}
	}
	to = coord.UnpackAbsolute(coord.OffsetAbsolute(coord.PackAbsolute(from), delta))
	if err := s.repo.Save(ctx, itemID, to); err != nil {
		return from, to, fmt.Errorf("сохранение предмета %d: %w", itemID, err)
	}
	return from, to, nil
}

func (s *Service) publishMoved(ctx context.Context, itemID uint64, from, to coord.Position) {
	if s.deps.Bus == nil {
		return
	}
	payload := EncodeMoved(Moved{ItemID: itemID, From: from, To: to})
	env := eventbus.NewEnvelope(s.cfg.Source, eventbus.EventDestinationMoved, 5, payload)
	if err := s.deps.Bus.Publish(ctx, env); err != nil {
		s.log.Warn("Destination %d: публикация события: %v", itemID, err)
	}
}

// ShiftAll сдвигает все пункты назначения на дельту (вставка области со смещением).
// В строгом режиме при выходе хотя бы одной позиции за домен ничего не меняется.
func (s *Service) ShiftAll(ctx context.Context, delta coord.Position) (int, error) {
	s.shiftMu.Lock()
	defer s.shiftMu.Unlock()

	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, nil
	}

	shifted := make(map[uint64]coord.Position, len(all))
	for itemID, pos := range all {
		if s.cfg.Strict {
			if err := coord.CheckDomain(coord.Absolute, pos.Add(delta)); err != nil {
				return 0, fmt.Errorf("предмет %d: %w", itemID, err)
			}
		}
		shifted[itemID] = coord.UnpackAbsolute(coord.OffsetAbsolute(coord.PackAbsolute(pos), delta))
	}

	if err := s.repo.BatchSave(ctx, shifted); err != nil {
		return 0, err
	}
	s.log.Info("📋 ShiftAll: %d пунктов назначения сдвинуто на %s", len(shifted), delta)
	return len(shifted), nil
}

// Validate пересобирает список проблем: пункты назначения вне границ карты.
// Возвращает число найденных проблем.
func (s *Service) Validate(ctx context.Context) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]uint64, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if s.deps.Problems != nil {
		s.deps.Problems.Clear()
	}
	found := 0
	for _, id := range ids {
		pos := all[id]
		if pos.IsValid(s.cfg.Bounds) {
			continue
		}
		found++
		if s.deps.Problems != nil {
			s.deps.Problems.Insert(problems.SeverityError, problems.FromPosition(pos),
				fmt.Sprintf("Teleport destination of item %d is outside the map", id))
		}
	}
	return found, nil
}
