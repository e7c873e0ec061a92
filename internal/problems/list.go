package problems

import (
	"sync"

	"github.com/annel0/mapcoord/internal/coord"
)

// Severity - уровень проблемы
type Severity int

const (
	SeverityNotice Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "Notice"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return ""
	}
}

// Колонки списка проблем
const (
	ColumnSeverity = iota
	ColumnSource
	ColumnMessage
)

// Problem - одна запись списка
type Problem struct {
	Severity Severity
	Source   Source
	Message  string
}

// Centerer - редактор, который умеет центрировать вид на позиции
type Centerer interface {
	SetScreenCenterPosition(pos coord.Position)
}

// List - список проблем карты. Безопасен для конкурентного использования.
type List struct {
	mu       sync.RWMutex
	problems []Problem
	names    TypeNames
	centerer Centerer
}

// NewList создает пустой список; names и centerer могут быть nil
func NewList(names TypeNames, centerer Centerer) *List {
	return &List{names: names, centerer: centerer}
}

// Insert добавляет проблему в конец списка
func (l *List) Insert(severity Severity, source Source, message string) {
	if source == nil {
		source = NoSource{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.problems = append(l.problems, Problem{Severity: severity, Source: source, Message: message})
}

// Clear удаляет все проблемы
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.problems = nil
}

// Len возвращает количество проблем
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.problems)
}

// Get возвращает проблему по номеру строки
func (l *List) Get(row int) (Problem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if row < 0 || row >= len(l.problems) {
		return Problem{}, false
	}
	return l.problems[row], true
}

// All возвращает копию списка
func (l *List) All() []Problem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Problem, len(l.problems))
	copy(out, l.problems)
	return out
}

// Row - строка списка в текстовом виде
type Row struct {
	Severity string
	Source   string
	Kind     SourceKind
	Message  string
}

// Rows возвращает согласованный снимок всех строк
func (l *List) Rows() []Row {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rows := make([]Row, len(l.problems))
	for i, p := range l.problems {
		rows[i] = Row{
			Severity: p.Severity.String(),
			Source:   DescribeSource(p.Source, l.names),
			Kind:     p.Source.Kind(),
			Message:  p.Message,
		}
	}
	return rows
}

// Text возвращает текст ячейки; для несуществующих строк и колонок - ""
func (l *List) Text(row, column int) string {
	p, ok := l.Get(row)
	if !ok {
		return ""
	}

	switch column {
	case ColumnSeverity:
		return p.Severity.String()
	case ColumnSource:
		return DescribeSource(p.Source, l.names)
	case ColumnMessage:
		return p.Message
	default:
		return ""
	}
}

// Select обрабатывает выбор строки: для позиционного источника
// просит редактор отцентрировать вид. Возвращает true, если вид сдвинут.
func (l *List) Select(row int) bool {
	p, ok := l.Get(row)
	if !ok || l.centerer == nil {
		return false
	}

	src, ok := p.Source.(PositionSource)
	if !ok {
		return false
	}
	l.centerer.SetScreenCenterPosition(src.Position)
	return true
}
