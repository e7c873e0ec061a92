package problems

import (
	"fmt"

	"github.com/annel0/mapcoord/internal/coord"
)

// SourceKind - дискриминант источника проблемы
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceObjectType
	SourceCreatureType
	SourcePosition
)

func (k SourceKind) String() string {
	switch k {
	case SourceObjectType:
		return "object_type"
	case SourceCreatureType:
		return "creature_type"
	case SourcePosition:
		return "position"
	default:
		return "none"
	}
}

// Source - на что ссылается проблема. Реализуется только типами этого пакета.
type Source interface {
	Kind() SourceKind
	isSource()
}

// NoSource - проблема без ссылки
type NoSource struct{}

// ObjectTypeSource ссылается на тип предмета
type ObjectTypeSource struct {
	TypeID int
}

// CreatureTypeSource ссылается на тип существа
type CreatureTypeSource struct {
	RaceID int
}

// PositionSource ссылается на точку карты
type PositionSource struct {
	Position coord.Position
}

func (NoSource) Kind() SourceKind           { return SourceNone }
func (ObjectTypeSource) Kind() SourceKind   { return SourceObjectType }
func (CreatureTypeSource) Kind() SourceKind { return SourceCreatureType }
func (PositionSource) Kind() SourceKind     { return SourcePosition }

func (NoSource) isSource()           {}
func (ObjectTypeSource) isSource()   {}
func (CreatureTypeSource) isSource() {}
func (PositionSource) isSource()     {}

// FromObjectType создает источник - тип предмета
func FromObjectType(typeID int) Source {
	return ObjectTypeSource{TypeID: typeID}
}

// FromCreatureType создает источник - тип существа
func FromCreatureType(raceID int) Source {
	return CreatureTypeSource{RaceID: raceID}
}

// FromPosition создает источник - позицию
func FromPosition(pos coord.Position) Source {
	return PositionSource{Position: pos}
}

// FromXYZ создает источник - позицию из отдельных координат
func FromXYZ(x, y, z int) Source {
	return PositionSource{Position: coord.New(x, y, z)}
}

// FromSector создает источник - центр сектора карты
func FromSector(sectorX, sectorY, sectorZ, sectorSize int) Source {
	return PositionSource{Position: coord.SectorCenter(sectorX, sectorY, sectorZ, sectorSize)}
}

// TypeNames разрешает имена типов предметов и существ для отображения
type TypeNames interface {
	ObjectTypeName(typeID int) string
	CreatureTypeName(raceID int) string
}

// DescribeSource возвращает текст колонки "Source"
func DescribeSource(src Source, names TypeNames) string {
	switch s := src.(type) {
	case ObjectTypeSource:
		if names != nil {
			return names.ObjectTypeName(s.TypeID)
		}
		return fmt.Sprintf("object #%d", s.TypeID)
	case CreatureTypeSource:
		if names != nil {
			return names.CreatureTypeName(s.RaceID)
		}
		return fmt.Sprintf("creature #%d", s.RaceID)
	case PositionSource:
		return fmt.Sprintf("(%d,%d,%d)", s.Position.X, s.Position.Y, s.Position.Z)
	default:
		return ""
	}
}
