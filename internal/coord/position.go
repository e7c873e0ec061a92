package coord

import (
	"fmt"
	"strconv"
	"strings"
)

// Position представляет точку на многослойной карте.
// X, Y - координаты на плоскости, Z - номер этажа (слоя).
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Bounds описывает границы мира, в которых позиция считается корректной.
type Bounds struct {
	MinLayer  int `yaml:"min_layer"`
	MaxLayer  int `yaml:"max_layer"`
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// DefaultBounds возвращает границы карты редактора по умолчанию
func DefaultBounds() Bounds {
	return Bounds{
		MinLayer:  0,
		MaxLayer:  15,
		MaxWidth:  65000,
		MaxHeight: 65000,
	}
}

// New создает позицию из трех координат
func New(x, y, z int) Position {
	return Position{X: x, Y: y, Z: z}
}

// IsZero сообщает, что позиция не задана (0,0,0)
func (p Position) IsZero() bool {
	return p.X == 0 && p.Y == 0 && p.Z == 0
}

// IsValid проверяет, что позиция лежит внутри границ мира.
// Позиция (0,0,0) зарезервирована как "не задана" и всегда недействительна.
func (p Position) IsValid(b Bounds) bool {
	if p.IsZero() {
		return false
	}
	return p.Z >= b.MinLayer && p.Z <= b.MaxLayer &&
		p.Y >= 0 && p.Y <= b.MaxHeight &&
		p.X >= 0 && p.X <= b.MaxWidth
}

// Add складывает две позиции
func (p Position) Add(other Position) Position {
	return Position{
		X: p.X + other.X,
		Y: p.Y + other.Y,
		Z: p.Z + other.Z,
	}
}

// Sub возвращает разность позиций (дельту от other до p)
func (p Position) Sub(other Position) Position {
	return Position{
		X: p.X - other.X,
		Y: p.Y - other.Y,
		Z: p.Z - other.Z,
	}
}

// Abs возвращает позицию с модулями координат
func (p Position) Abs() Position {
	return Position{X: abs(p.X), Y: abs(p.Y), Z: abs(p.Z)}
}

// Equal проверяет равенство позиций
func (p Position) Equal(other Position) bool {
	return p == other
}

// String возвращает позицию в формате x:y:z
func (p Position) String() string {
	return fmt.Sprintf("%d:%d:%d", p.X, p.Y, p.Z)
}

// Parse разбирает позицию в формате x:y:z
func Parse(s string) (Position, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Position{}, fmt.Errorf("неверный формат позиции %q: ожидается x:y:z", s)
	}

	var vals [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Position{}, fmt.Errorf("неверная координата %q в позиции %q: %w", part, s, err)
		}
		vals[i] = v
	}

	return Position{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// SectorCenter возвращает центр сектора карты с указанными координатами
func SectorCenter(sectorX, sectorY, sectorZ, sectorSize int) Position {
	return Position{
		X: sectorX*sectorSize + sectorSize/2,
		Y: sectorY*sectorSize + sectorSize/2,
		Z: sectorZ,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
