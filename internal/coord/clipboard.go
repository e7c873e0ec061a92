package coord

import (
	"regexp"
	"strconv"
)

// Форматы, которые встречаются в буфере обмена:
//
//	32000:32000:7
//	32000, 32000, 7
//	(32000,32000,7)
//	{x = 32000, y = 32000, z = 7}
//	Position(32000, 32000, 7)
var clipboardPattern = regexp.MustCompile(`(?i)^\s*(?:position)?\s*[({\[]?\s*` +
	`(?:x\s*=\s*)?(-?\d+)\s*[,:;]\s*` +
	`(?:y\s*=\s*)?(-?\d+)\s*[,:;]\s*` +
	`(?:z\s*=\s*)?(-?\d+)\s*[)}\]]?\s*$`)

// ParseClipboard пытается извлечь позицию из текста буфера обмена.
// Возвращает false, если текст не похож на позицию.
func ParseClipboard(text string) (Position, bool) {
	m := clipboardPattern.FindStringSubmatch(text)
	if m == nil {
		return Position{}, false
	}

	var vals [3]int
	for i := range vals {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Position{}, false
		}
		vals[i] = v
	}
	return Position{X: vals[0], Y: vals[1], Z: vals[2]}, true
}
