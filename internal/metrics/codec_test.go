package metrics

import (
	"testing"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_CountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCodecMetrics(reg)
	c := NewCodec(m)

	v := c.Pack(coord.Absolute, coord.New(24576, 24576, 0))
	assert.Equal(t, coord.Packed(0), v)
	_, err := c.PackStrict(coord.Relative, coord.New(1, 1, 1))
	require.NoError(t, err)
	c.Unpack(coord.Relative, 0x80020008)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.packs.WithLabelValues("absolute")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.packs.WithLabelValues("relative")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.unpacks.WithLabelValues("relative")))
}

func TestCodec_CountsOutOfDomain(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCodecMetrics(reg)
	c := NewCodec(m)

	_, err := c.PackStrict(coord.Absolute, coord.New(30000, 30000, 16))
	require.ErrorIs(t, err, coord.ErrOutOfDomain)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.outOfDomain.WithLabelValues("absolute", "z")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.packs.WithLabelValues("absolute")))
}

func TestCodec_NilMetrics(t *testing.T) {
	c := NewCodec(nil)
	assert.Equal(t, coord.Packed(0xFFFFFFFF), c.Pack(coord.Absolute, coord.New(40959, 40959, 15)))
	_, err := c.PackStrict(coord.Relative, coord.New(0, 0, 8))
	assert.Error(t, err)
}
