package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_IsValid(t *testing.T) {
	b := DefaultBounds()

	tests := []struct {
		name  string
		pos   Position
		valid bool
	}{
		{"zero is unset", New(0, 0, 0), false},
		{"inside", New(1, 1, 0), true},
		{"max corner", New(b.MaxWidth, b.MaxHeight, b.MaxLayer), true},
		{"x negative", New(-1, 5, 7), false},
		{"x too large", New(b.MaxWidth+1, 5, 7), false},
		{"y too large", New(5, b.MaxHeight+1, 7), false},
		{"layer too high", New(5, 5, b.MaxLayer+1), false},
		{"layer negative", New(5, 5, -1), false},
		{"only z set", New(0, 0, 7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.pos.IsValid(b))
		})
	}
}

func TestPosition_IsValid_CustomBounds(t *testing.T) {
	small := Bounds{MinLayer: 0, MaxLayer: 0, MaxWidth: 0, MaxHeight: 0}
	assert.False(t, New(1, 1, 0).IsValid(small), "(1,1,0) вне мира 0x0")
	assert.False(t, New(0, 0, 0).IsValid(small), "(0,0,0) недействительна всегда")

	wide := Bounds{MinLayer: 0, MaxLayer: 15, MaxWidth: 10, MaxHeight: 10}
	assert.True(t, New(1, 1, 0).IsValid(wide))
}

func TestPosition_Arithmetic(t *testing.T) {
	a := New(10, 20, 3)
	b := New(4, 25, 5)

	assert.Equal(t, New(14, 45, 8), a.Add(b))
	assert.Equal(t, New(6, -5, -2), a.Sub(b))
	assert.Equal(t, New(6, 5, 2), a.Sub(b).Abs())
	assert.True(t, a.Equal(New(10, 20, 3)))
	assert.False(t, a.Equal(b))
	assert.True(t, Position{}.IsZero())
}

func TestPosition_StringParse(t *testing.T) {
	p := New(32000, 31999, 7)
	assert.Equal(t, "32000:31999:7", p.String())

	parsed, err := Parse(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)

	parsed, err = Parse(" -5 : 6 : -7 ")
	require.NoError(t, err)
	assert.Equal(t, New(-5, 6, -7), parsed)

	_, err = Parse("1:2")
	assert.Error(t, err)

	_, err = Parse("1:b:3")
	assert.Error(t, err)
}

func TestSectorCenter(t *testing.T) {
	assert.Equal(t, New(1000*32+16, 999*32+16, 7), SectorCenter(1000, 999, 7, 32))
}

func TestParseClipboard(t *testing.T) {
	tests := []struct {
		text string
		want Position
		ok   bool
	}{
		{"32000:32000:7", New(32000, 32000, 7), true},
		{"32000, 32001, 7", New(32000, 32001, 7), true},
		{"(32000,32001,7)", New(32000, 32001, 7), true},
		{"{x = 32000, y = 32001, z = 7}", New(32000, 32001, 7), true},
		{"Position(1, 2, 3)", New(1, 2, 3), true},
		{"  -1:-2:-3  ", New(-1, -2, -3), true},
		{"hello", Position{}, false},
		{"1,2", Position{}, false},
		{"1,2,3,4", Position{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseClipboard(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
