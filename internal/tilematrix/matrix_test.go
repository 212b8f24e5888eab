package tilematrix

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatrix(numX, numY int64) *TileMatrix {
	return &TileMatrix{
		Identifier: "m",
		NumTilesX:  numX,
		NumTilesY:  numY,
		TopLeft:    orb.Point{0, 1000},
		Resolution: 1,
		TileWidth:  100,
		TileHeight: 100,
	}
}

func TestInvertRowIsInvolution(t *testing.T) {
	for _, n := range []int64{1, 2, 7, 10, 1024} {
		m := testMatrix(1, n)
		for y := int64(0); y < n; y++ {
			inv := m.InvertRow(y)
			require.True(t, inv >= 0 && inv < n, "n=%d y=%d inv=%d", n, y, inv)
			require.Equal(t, y, m.InvertRow(inv))
		}
	}
}

func TestValidateAndInvert(t *testing.T) {
	m := testMatrix(100, 10)

	inv, ok := m.ValidateAndInvert(0, 0)
	require.True(t, ok)
	assert.EqualValues(t, 9, inv)

	inv, ok = m.ValidateAndInvert(99, 9)
	require.True(t, ok)
	assert.EqualValues(t, 0, inv)

	for _, c := range []struct {
		name string
		x, y int64
	}{
		{"negative x", -1, 0},
		{"negative y", 0, -1},
		{"x at width", 100, 0},
		{"x past width", 150, 0},
		{"y at height", 0, 10},
	} {
		t.Run(c.name, func(t *testing.T) {
			_, ok := m.ValidateAndInvert(c.x, c.y)
			assert.False(t, ok)
		})
	}
}

func TestValidateAndInvertEmptyMatrix(t *testing.T) {
	m := testMatrix(0, 0)
	_, ok := m.ValidateAndInvert(0, 0)
	assert.False(t, ok)
}

func TestTileEnvelope(t *testing.T) {
	m := testMatrix(10, 10)

	assert.Equal(t, orb.Bound{Min: orb.Point{0, 900}, Max: orb.Point{100, 1000}}, m.TileEnvelope(0, 0))
	assert.Equal(t, orb.Bound{Min: orb.Point{200, 600}, Max: orb.Point{300, 700}}, m.TileEnvelope(2, 3))
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}}, m.Envelope())
}

func TestTileMatrixSetAssignsOrdinals(t *testing.T) {
	in := []TileMatrix{{Identifier: "a", Ordinal: 7}, {Identifier: "b"}, {Identifier: "c"}}
	set := NewTileMatrixSet("s", "EPSG:3857", in)

	for i, m := range set.Matrices {
		assert.Equal(t, i, m.Ordinal)
	}
	assert.Equal(t, 7, in[0].Ordinal, "input slice must not be modified")
}

func TestTileMatrixSetEnvelope(t *testing.T) {
	coarse := *testMatrix(1, 1)
	coarse.Identifier = "0"
	fine := *testMatrix(4, 2)
	fine.Identifier = "1"

	set := NewTileMatrixSet("s", "EPSG:25832", []TileMatrix{coarse, fine})
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 800}, Max: orb.Point{400, 1000}}, set.Envelope())
	assert.Equal(t, orb.Bound{}, NewTileMatrixSet("empty", "", nil).Envelope())
}
