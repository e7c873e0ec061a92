package metrics

import (
	"errors"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/prometheus/client_golang/prometheus"
)

// CodecMetrics считает операции упаковки координат.
//
// Метрики:
// * mapcoord_codec_pack_total{mode} - counter
// * mapcoord_codec_unpack_total{mode} - counter
// * mapcoord_codec_out_of_domain_total{mode,axis} - counter (строгая упаковка)
type CodecMetrics struct {
	packs       *prometheus.CounterVec
	unpacks     *prometheus.CounterVec
	outOfDomain *prometheus.CounterVec
}

// NewCodecMetrics создаёт счётчики и регистрирует их в reg.
func NewCodecMetrics(reg prometheus.Registerer) *CodecMetrics {
	m := &CodecMetrics{
		packs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapcoord",
			Subsystem: "codec",
			Name:      "pack_total",
			Help:      "Число упакованных позиций.",
		}, []string{"mode"}),
		unpacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapcoord",
			Subsystem: "codec",
			Name:      "unpack_total",
			Help:      "Число распакованных слов.",
		}, []string{"mode"}),
		outOfDomain: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapcoord",
			Subsystem: "codec",
			Name:      "out_of_domain_total",
			Help:      "Позиции, отвергнутые строгой упаковкой.",
		}, []string{"mode", "axis"}),
	}
	reg.MustRegister(m.packs, m.unpacks, m.outOfDomain)
	return m
}

// Codec оборачивает функции пакета coord и считает вызовы
type Codec struct {
	m *CodecMetrics
}

// NewCodec возвращает кодек; m == nil отключает учёт
func NewCodec(m *CodecMetrics) *Codec {
	return &Codec{m: m}
}

// Pack упаковывает с усечением
func (c *Codec) Pack(mode coord.Mode, p coord.Position) coord.Packed {
	if c.m != nil {
		c.m.packs.WithLabelValues(mode.String()).Inc()
	}
	return coord.Pack(mode, p)
}

// PackStrict упаковывает с проверкой домена
func (c *Codec) PackStrict(mode coord.Mode, p coord.Position) (coord.Packed, error) {
	v, err := coord.PackStrict(mode, p)
	if c.m == nil {
		return v, err
	}
	if err != nil {
		var ode *coord.OutOfDomainError
		axis := "unknown"
		if errors.As(err, &ode) {
			axis = ode.Axis
		}
		c.m.outOfDomain.WithLabelValues(mode.String(), axis).Inc()
		return v, err
	}
	c.m.packs.WithLabelValues(mode.String()).Inc()
	return v, nil
}

// Unpack распаковывает слово
func (c *Codec) Unpack(mode coord.Mode, v coord.Packed) coord.Position {
	if c.m != nil {
		c.m.unpacks.WithLabelValues(mode.String()).Inc()
	}
	return coord.Unpack(mode, v)
}
