package destination

import (
	"encoding/binary"
	"fmt"

	"github.com/annel0/mapcoord/internal/coord"
)

// movedSize - itemID (8 байт) + позиция до и после (по 4 байта, Absolute), big-endian
const movedSize = 16

// Moved - полезная нагрузка события DestinationMoved.
// Передаются мировые позиции, а не дельта: отмена может выйти за относительный домен.
type Moved struct {
	ItemID uint64
	From   coord.Position
	To     coord.Position
}

// Delta возвращает фактический сдвиг
func (m Moved) Delta() coord.Position { return m.To.Sub(m.From) }

// EncodeMoved кодирует событие перемещения
func EncodeMoved(m Moved) []byte {
	buf := make([]byte, 0, movedSize)
	buf = binary.BigEndian.AppendUint64(buf, m.ItemID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(coord.PackAbsolute(m.From)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(coord.PackAbsolute(m.To)))
	return buf
}

// DecodeMoved декодирует событие перемещения
func DecodeMoved(payload []byte) (Moved, error) {
	if len(payload) != movedSize {
		return Moved{}, fmt.Errorf("событие перемещения: неверная длина %d байт", len(payload))
	}
	return Moved{
		ItemID: binary.BigEndian.Uint64(payload[0:8]),
		From:   coord.UnpackAbsolute(coord.Packed(binary.BigEndian.Uint32(payload[8:12]))),
		To:     coord.UnpackAbsolute(coord.Packed(binary.BigEndian.Uint32(payload[12:16]))),
	}, nil
}
