package coord

import (
	"fmt"
	"strings"
)

// Packed - позиция, упакованная в 32-битное слово.
// Режим упаковки в слове не хранится, его отслеживает вызывающая сторона.
type Packed uint32

// Раскладка битов (от младших к старшим): z 0-3, y 4-17, x 18-31
const (
	zBits  = 4
	xyBits = 14

	zMask  = 1<<zBits - 1  // 0x0000000F
	xyMask = 1<<xyBits - 1 // 0x00003FFF

	yShift = zBits
	xShift = zBits + xyBits
)

// Mode определяет режим упаковки координат
type Mode int

const (
	// Absolute - мировые координаты
	Absolute Mode = iota
	// Relative - знаковая дельта (перемещение, отмена, diff)
	Relative
)

// String возвращает имя режима
func (m Mode) String() string {
	switch m {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode разбирает имя режима ("absolute"/"abs", "relative"/"rel")
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "absolute", "abs":
		return Absolute, nil
	case "relative", "rel":
		return Relative, nil
	default:
		return 0, fmt.Errorf("неизвестный режим упаковки: %q", s)
	}
}

// Domain описывает допустимые значения осей для режима упаковки.
// Offset прибавляется к координатам перед маскированием.
type Domain struct {
	Min    Position `json:"min"`
	Max    Position `json:"max"`
	Offset Position `json:"offset"`
}

var (
	absoluteDomain = Domain{
		Min:    Position{X: 24576, Y: 24576, Z: 0},
		Max:    Position{X: 40959, Y: 40959, Z: 15},
		Offset: Position{X: -24576, Y: -24576, Z: 0},
	}
	relativeDomain = Domain{
		Min:    Position{X: -8192, Y: -8192, Z: -8},
		Max:    Position{X: 8191, Y: 8191, Z: 7},
		Offset: Position{X: 8192, Y: 8192, Z: 8},
	}
)

// DomainOf возвращает домен режима. Для неизвестного режима используется Absolute.
func DomainOf(m Mode) Domain {
	if m == Relative {
		return relativeDomain
	}
	return absoluteDomain
}

// Contains проверяет, что позиция лежит внутри домена (границы включительно)
func (d Domain) Contains(p Position) bool {
	return d.firstViolation(p) == ""
}

// firstViolation возвращает имя первой оси, вышедшей за домен, или ""
func (d Domain) firstViolation(p Position) string {
	switch {
	case p.X < d.Min.X || p.X > d.Max.X:
		return "x"
	case p.Y < d.Min.Y || p.Y > d.Max.Y:
		return "y"
	case p.Z < d.Min.Z || p.Z > d.Max.Z:
		return "z"
	}
	return ""
}

func (d Domain) pack(p Position) Packed {
	x := uint32((p.X+d.Offset.X)&xyMask) << xShift
	y := uint32((p.Y+d.Offset.Y)&xyMask) << yShift
	z := uint32((p.Z + d.Offset.Z) & zMask)
	return Packed(x | y | z)
}

func (d Domain) unpack(v Packed) Position {
	return Position{
		X: int((uint32(v)>>xShift)&xyMask) - d.Offset.X,
		Y: int((uint32(v)>>yShift)&xyMask) - d.Offset.Y,
		Z: int(uint32(v)&zMask) - d.Offset.Z,
	}
}

// PackAbsolute упаковывает мировые координаты.
// DOMAIN: [24576, 40959] x [24576, 40959] x [0, 15].
// Значения вне домена не отвергаются, а усекаются маской.
func PackAbsolute(p Position) Packed {
	return absoluteDomain.pack(p)
}

// UnpackAbsolute распаковывает мировые координаты
func UnpackAbsolute(v Packed) Position {
	return absoluteDomain.unpack(v)
}

// PackRelative упаковывает дельту.
// DOMAIN: [-8192, 8191] x [-8192, 8191] x [-8, 7].
// Значения вне домена не отвергаются, а усекаются маской.
func PackRelative(p Position) Packed {
	return relativeDomain.pack(p)
}

// UnpackRelative распаковывает дельту
func UnpackRelative(v Packed) Position {
	return relativeDomain.unpack(v)
}

// Pack упаковывает позицию в указанном режиме (с усечением)
func Pack(m Mode, p Position) Packed {
	return DomainOf(m).pack(p)
}

// Unpack распаковывает слово в указанном режиме
func Unpack(m Mode, v Packed) Position {
	return DomainOf(m).unpack(v)
}

// CheckDomain возвращает *OutOfDomainError для первой оси вне домена режима
func CheckDomain(m Mode, p Position) error {
	d := DomainOf(m)
	axis := d.firstViolation(p)
	if axis == "" {
		return nil
	}

	err := &OutOfDomainError{Mode: m, Axis: axis}
	switch axis {
	case "x":
		err.Value, err.Min, err.Max = p.X, d.Min.X, d.Max.X
	case "y":
		err.Value, err.Min, err.Max = p.Y, d.Min.Y, d.Max.Y
	case "z":
		err.Value, err.Min, err.Max = p.Z, d.Min.Z, d.Max.Z
	}
	return err
}

// PackStrict упаковывает позицию, отвергая значения вне домена вместо усечения
func PackStrict(m Mode, p Position) (Packed, error) {
	if err := CheckDomain(m, p); err != nil {
		return 0, err
	}
	return Pack(m, p), nil
}

// OffsetAbsolute сдвигает упакованную мировую позицию на дельту.
// Используется при вставке области карты со смещением (пункты назначения телепортов).
func OffsetAbsolute(v Packed, delta Position) Packed {
	return PackAbsolute(UnpackAbsolute(v).Add(delta))
}

// Fields возвращает сырые поля слова без смещений: x, y, z
func (v Packed) Fields() (x, y, z uint32) {
	return (uint32(v) >> xShift) & xyMask, (uint32(v) >> yShift) & xyMask, uint32(v) & zMask
}

// String возвращает слово в шестнадцатеричном виде
func (v Packed) String() string {
	return fmt.Sprintf("0x%08X", uint32(v))
}
