package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConsistency(t *testing.T) {
	cases := map[string]Consistency{
		"":        ConsistencyDefault,
		"ONE":     ConsistencyOne,
		"two":     ConsistencyTwo,
		" Three ": ConsistencyThree,
		"QUORUM":  ConsistencyQuorum,
		"all":     ConsistencyAll,
		"ANY":     ConsistencyAny,
	}
	for in, want := range cases {
		got, err := ParseConsistency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseConsistency("LOCAL_SOMETIMES")
	assert.Error(t, err)
}

func TestParseReadConsistencyRejectsAny(t *testing.T) {
	_, err := ParseReadConsistency("ANY")
	assert.ErrorContains(t, err, "reads")

	c, err := ParseWriteConsistency("ANY")
	require.NoError(t, err)
	assert.Equal(t, ConsistencyAny, c)

	c, err = ParseReadConsistency("quorum")
	require.NoError(t, err)
	assert.Equal(t, ConsistencyQuorum, c)
}

func TestConsistencyString(t *testing.T) {
	assert.Equal(t, "DEFAULT", ConsistencyDefault.String())
	assert.Equal(t, "QUORUM", ConsistencyQuorum.String())
	assert.Equal(t, "Consistency(42)", Consistency(42).String())
}
