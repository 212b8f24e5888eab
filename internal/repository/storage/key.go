package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/tilematrix"
)

const (
	// KeySeparator joins the key groups. It never occurs inside a group.
	KeySeparator = '|'

	levelDigits = 2
	groupDigits = 3
	groupBase   = 1000

	// MaxLevels is the number of tile matrices the two digit level part can
	// tell apart. Ordinal MaxLevels encodes like ordinal 0.
	MaxLevels = 100
	// MaxCoordinate is the largest column or row the three base-1000 groups
	// can hold. Larger values wrap.
	MaxCoordinate int64 = groupBase*groupBase*groupBase - 1
)

// EncodeKey builds the storage key of a tile:
//
//	<mimeTag>|LL|xxx|xxx|xxx|yyy|yyy|yyy
//
// LL is the level ordinal and the x and y parts are the column and the
// bottom-up row split into base-1000 groups. The fixed width keeps the
// lexicographic key order equal to the numeric tile order.
//
// Values outside MaxLevels and MaxCoordinate wrap and collide with smaller
// ones; CheckRepresentable rejects matrix sets that could get there.
func EncodeKey(mimeTag string, ordinal int, x, invertedY int64) Key {
	var sb strings.Builder
	sb.Grow(len(mimeTag) + 1 + levelDigits + 2*3*(groupDigits+1))

	sb.WriteString(mimeTag)
	sb.WriteByte(KeySeparator)
	writePadded(&sb, int64(ordinal%MaxLevels), levelDigits)
	writeGroups(&sb, x)
	writeGroups(&sb, invertedY)

	return Key(sb.String())
}

func writeGroups(sb *strings.Builder, v int64) {
	for _, div := range [...]int64{groupBase * groupBase, groupBase, 1} {
		sb.WriteByte(KeySeparator)
		writePadded(sb, v/div%groupBase, groupDigits)
	}
}

func writePadded(sb *strings.Builder, v int64, width int) {
	s := strconv.FormatInt(v, 10)
	for i := len(s); i < width; i++ {
		sb.WriteByte('0')
	}
	sb.WriteString(s)
}

// MimeTag is the key prefix for a mime type: "image/png" becomes "png".
func MimeTag(mimeType string) string {
	return strings.TrimPrefix(mimeType, "image/")
}

// CheckRepresentable fails when a level of set cannot be encoded without
// wrapping.
func CheckRepresentable(set *tilematrix.TileMatrixSet) error {
	if n := len(set.Matrices); n > MaxLevels {
		return fmt.Errorf("tile matrix set %q has %d levels, keys support at most %d", set.Identifier, n, MaxLevels)
	}
	for _, m := range set.Matrices {
		if m.NumTilesX-1 > MaxCoordinate || m.NumTilesY-1 > MaxCoordinate {
			return fmt.Errorf("tile matrix %q of set %q is %dx%d tiles, keys support at most %d per axis",
				m.Identifier, set.Identifier, m.NumTilesX, m.NumTilesY, MaxCoordinate+1)
		}
	}
	return nil
}
