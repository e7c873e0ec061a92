package widget

import (
	"github.com/annel0/mapcoord/internal/coord"
)

// PositionField объединяет три числовых поля X, Y, Z
type PositionField struct {
	X *NumberField
	Y *NumberField
	Z *NumberField
}

// NewPositionField создает поле с покоординатными диапазонами [min, max]
func NewPositionField(min, max, pos coord.Position) *PositionField {
	return &PositionField{
		X: NewNumberField("X", min.X, max.X, pos.X),
		Y: NewNumberField("Y", min.Y, max.Y, pos.Y),
		Z: NewNumberField("Z", min.Z, max.Z, pos.Z),
	}
}

// NewAbsolutePositionField создает поле для ввода пункта назначения:
// диапазоны совпадают с доменом упаковки Absolute, поэтому значение
// из поля всегда упаковывается без потерь.
func NewAbsolutePositionField(pos coord.Position) *PositionField {
	d := coord.DomainOf(coord.Absolute)
	return NewPositionField(d.Min, d.Max, pos)
}

// Position возвращает текущее значение полей
func (p *PositionField) Position() coord.Position {
	return coord.Position{X: p.X.Int(), Y: p.Y.Int(), Z: p.Z.Int()}
}

// SetPosition записывает позицию, прижимая каждую ось к ее диапазону
func (p *PositionField) SetPosition(pos coord.Position) {
	p.X.SetInt(pos.X)
	p.Y.SetInt(pos.Y)
	p.Z.SetInt(pos.Z)
}

// Commit фиксирует все три поля и возвращает итоговую позицию
func (p *PositionField) Commit() coord.Position {
	return coord.Position{X: p.X.Commit(), Y: p.Y.Commit(), Z: p.Z.Commit()}
}

// SetEnabled включает или выключает все три поля
func (p *PositionField) SetEnabled(enabled bool) {
	p.X.SetEnabled(enabled)
	p.Y.SetEnabled(enabled)
	p.Z.SetEnabled(enabled)
}

// Enabled сообщает, что включены все три поля
func (p *PositionField) Enabled() bool {
	return p.X.Enabled() && p.Y.Enabled() && p.Z.Enabled()
}

// Paste разбирает текст буфера обмена как позицию.
// false означает, что текст не является позицией и должен вставиться как обычно.
func (p *PositionField) Paste(text string) bool {
	if !p.Enabled() {
		return false
	}
	pos, ok := coord.ParseClipboard(text)
	if !ok {
		return false
	}
	p.SetPosition(pos)
	return true
}
