package storage

import (
	"fmt"
	"strings"
)

// Consistency is the replica acknowledgement level of a read or a write.
// ConsistencyDefault leaves the choice to the backend.
type Consistency uint8

const (
	ConsistencyDefault Consistency = iota
	ConsistencyOne
	ConsistencyTwo
	ConsistencyThree
	ConsistencyQuorum
	ConsistencyAll
	// ConsistencyAny is only valid for writes.
	ConsistencyAny
)

var consistencyNames = map[Consistency]string{
	ConsistencyDefault: "",
	ConsistencyOne:     "ONE",
	ConsistencyTwo:     "TWO",
	ConsistencyThree:   "THREE",
	ConsistencyQuorum:  "QUORUM",
	ConsistencyAll:     "ALL",
	ConsistencyAny:     "ANY",
}

func (c Consistency) String() string {
	if c == ConsistencyDefault {
		return "DEFAULT"
	}
	if name, ok := consistencyNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Consistency(%d)", uint8(c))
}

// ParseConsistency parses a level name case-insensitively. An empty name
// yields ConsistencyDefault.
func ParseConsistency(name string) (Consistency, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return ConsistencyDefault, nil
	}
	for c, n := range consistencyNames {
		if c != ConsistencyDefault && n == name {
			return c, nil
		}
	}
	return ConsistencyDefault, fmt.Errorf("unknown consistency level %q", name)
}

// ParseReadConsistency is ParseConsistency without ANY.
func ParseReadConsistency(name string) (Consistency, error) {
	c, err := ParseConsistency(name)
	if err != nil {
		return c, err
	}
	if c == ConsistencyAny {
		return ConsistencyDefault, fmt.Errorf("consistency level %s is not valid for reads", c)
	}
	return c, nil
}

// ParseWriteConsistency is ParseConsistency; ANY is accepted for writes.
func ParseWriteConsistency(name string) (Consistency, error) {
	return ParseConsistency(name)
}
