package widget

import (
	"testing"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/stretchr/testify/assert"
)

func TestNumberField_CommitClamps(t *testing.T) {
	f := NewNumberField("X", 0, 100, 50)
	assert.Equal(t, Committed, f.State())
	assert.Equal(t, 50, f.Int())

	f.SetText("250")
	assert.Equal(t, Editing, f.State())
	assert.Equal(t, 250, f.Int(), "во время редактирования значение не прижимается")

	assert.Equal(t, 100, f.Commit())
	assert.Equal(t, Committed, f.State())
	assert.Equal(t, "100", f.Text())

	f.SetText("-3")
	assert.Equal(t, 0, f.Commit())
}

func TestNumberField_CommitKeepsInRangeText(t *testing.T) {
	f := NewNumberField("Y", 0, 100, 0)
	f.SetText("007")
	assert.Equal(t, 7, f.Commit())
	assert.Equal(t, "007", f.Text(), "значение в диапазоне не переписывается")
}

func TestNumberField_NonNumeric(t *testing.T) {
	f := NewNumberField("Z", 5, 10, 7)
	f.SetText("abc")
	assert.Equal(t, 0, f.Int())
	assert.Equal(t, 5, f.Commit())
}

func TestNumberField_InitialAndSetIntClamp(t *testing.T) {
	f := NewNumberField("X", 10, 20, 99)
	assert.Equal(t, 20, f.Int())

	called := false
	f.OnCommit(func(int) { called = true })
	f.SetInt(1)
	assert.Equal(t, 10, f.Int())
	assert.False(t, called, "SetInt не генерирует событий")
}

func TestNumberField_SetRange(t *testing.T) {
	f := NewNumberField("X", 0, 100, 80)

	var committed []int
	f.OnCommit(func(v int) { committed = append(committed, v) })

	f.SetRange(0, 100)
	assert.Empty(t, committed, "тот же диапазон не вызывает перепроверку")

	f.SetRange(0, 50)
	assert.Equal(t, 50, f.Int())
	assert.Equal(t, []int{50}, committed)

	min, max := f.Range()
	assert.Equal(t, 0, min)
	assert.Equal(t, 50, max)
}

func TestNumberField_Disabled(t *testing.T) {
	f := NewNumberField("X", 0, 100, 1)
	f.SetEnabled(false)
	f.SetText("42")
	assert.Equal(t, 1, f.Int())
	assert.Equal(t, Committed, f.State())
}

func TestPositionField(t *testing.T) {
	p := NewAbsolutePositionField(coord.New(32000, 32000, 7))
	assert.Equal(t, coord.New(32000, 32000, 7), p.Position())

	p.SetPosition(coord.New(50000, 100, 20))
	got := p.Position()
	assert.Equal(t, coord.New(40959, 24576, 15), got)
	assert.True(t, coord.DomainOf(coord.Absolute).Contains(got))

	p.X.SetText("99999")
	assert.Equal(t, coord.New(40959, 24576, 15), p.Commit())
}

func TestPositionField_Paste(t *testing.T) {
	p := NewAbsolutePositionField(coord.New(30000, 30000, 7))

	assert.True(t, p.Paste("{x = 32100, y = 32200, z = 6}"))
	assert.Equal(t, coord.New(32100, 32200, 6), p.Position())

	assert.False(t, p.Paste("not a position"))
	assert.Equal(t, coord.New(32100, 32200, 6), p.Position())

	p.SetEnabled(false)
	assert.False(t, p.Enabled())
	assert.False(t, p.Paste("1:2:3"))
}
