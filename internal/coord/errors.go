package coord

import (
	"errors"
	"fmt"
)

// ErrOutOfDomain - одна из координат не помещается в домен режима упаковки
var ErrOutOfDomain = errors.New("координата вне домена упаковки")

// OutOfDomainError содержит ось и значение, вышедшие за домен
type OutOfDomainError struct {
	Mode  Mode
	Axis  string
	Value int
	Min   int
	Max   int
}

func (e *OutOfDomainError) Error() string {
	return fmt.Sprintf("%s: режим %s, ось %s = %d (допустимо %d..%d)",
		ErrOutOfDomain, e.Mode, e.Axis, e.Value, e.Min, e.Max)
}

// Is позволяет сравнивать через errors.Is(err, ErrOutOfDomain)
func (e *OutOfDomainError) Is(target error) bool {
	return target == ErrOutOfDomain
}
