package widget

import (
	"strconv"
	"strings"
	"sync"
)

// FieldState - состояние числового поля ввода
type FieldState int

const (
	// Committed - текст поля содержит значение из диапазона
	Committed FieldState = iota
	// Editing - пользователь правит текст, диапазон еще не проверен
	Editing
)

func (s FieldState) String() string {
	if s == Editing {
		return "editing"
	}
	return "committed"
}

// NumberField - модель числового поля ввода с диапазоном [min, max].
// Пока пользователь редактирует текст, значение может выходить за диапазон;
// переход Commit (потеря фокуса или Enter) прижимает его к границам.
type NumberField struct {
	mu       sync.RWMutex
	name     string
	text     string
	min      int
	max      int
	state    FieldState
	enabled  bool
	onCommit func(value int)
}

// NewNumberField создает поле; начальное значение прижимается к диапазону
func NewNumberField(name string, min, max, value int) *NumberField {
	f := &NumberField{
		name:    name,
		min:     min,
		max:     max,
		enabled: true,
	}
	f.text = strconv.Itoa(f.clamp(value))
	return f
}

// Name возвращает имя поля ("X", "Y", "Z")
func (f *NumberField) Name() string {
	return f.name
}

// OnCommit задает обработчик, вызываемый после перехода в Committed
func (f *NumberField) OnCommit(fn func(value int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCommit = fn
}

// SetText имитирует ввод пользователя и переводит поле в Editing
func (f *NumberField) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled {
		return
	}
	f.text = text
	f.state = Editing
}

// Text возвращает текущий текст поля
func (f *NumberField) Text() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text
}

// State возвращает текущее состояние поля
func (f *NumberField) State() FieldState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Int возвращает значение поля; нечисловой текст дает 0
func (f *NumberField) Int() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return parseInt(f.text)
}

// SetInt записывает значение, прижатое к диапазону, без вызова OnCommit
func (f *NumberField) SetInt(value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = strconv.Itoa(f.clamp(value))
	f.state = Committed
}

// Range возвращает текущий диапазон
func (f *NumberField) Range() (min, max int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.min, f.max
}

// SetRange меняет диапазон и, если он изменился, перепроверяет значение
func (f *NumberField) SetRange(min, max int) {
	f.mu.Lock()
	if f.min == min && f.max == max {
		f.mu.Unlock()
		return
	}
	f.min, f.max = min, max
	f.mu.Unlock()

	f.Commit()
}

// Commit - переход Editing -> Committed. Текст меняется только если значение
// вышло за диапазон; значение внутри диапазона сохраняется как есть.
func (f *NumberField) Commit() int {
	f.mu.Lock()
	value := parseInt(f.text)
	if value < f.min || value > f.max {
		value = f.clamp(value)
		f.text = strconv.Itoa(value)
	}
	f.state = Committed
	fn := f.onCommit
	f.mu.Unlock()

	if fn != nil {
		fn(value)
	}
	return value
}

// SetEnabled включает или выключает поле; выключенное поле игнорирует ввод
func (f *NumberField) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

// Enabled сообщает, включено ли поле
func (f *NumberField) Enabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled
}

// clamp вызывается под блокировкой
func (f *NumberField) clamp(value int) int {
	if value < f.min {
		return f.min
	}
	if value > f.max {
		return f.max
	}
	return value
}

func parseInt(text string) int {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0
	}
	return v
}
