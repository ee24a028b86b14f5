package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ordinalFake0 = 100
	ordinalFake1 = 101
	ordinalFake2 = 102
)

func TestBuildRequiresMainPlugin(t *testing.T) {
	registry = nil
	_, err := Build(map[string]interface{}{})
	assert.Error(t, err)
}

func TestBuildInsertsRequiredPluginRightAfterPredecessor(t *testing.T) {
	registry = nil
	Register(Loader{Ordinal: OrdinalMain, Name: "main", Requires: NoRequirement, Load: func(scope map[string]interface{}, soFar ConfigList) (*Plugin, error) {
		return &Plugin{Config: "main"}, nil
	}})
	Register(Loader{Ordinal: ordinalFake0, Name: "fake0", Requires: NoRequirement, Load: func(scope map[string]interface{}, soFar ConfigList) (*Plugin, error) {
		return &Plugin{Config: "fake0"}, nil
	}})
	Register(Loader{Ordinal: ordinalFake2, Name: "fake2", Requires: ordinalFake0, Load: func(scope map[string]interface{}, soFar ConfigList) (*Plugin, error) {
		return &Plugin{Config: "fake2"}, nil
	}})

	list, err := Build(map[string]interface{}{})
	require.NoError(t, err)
	require.Len(t, list, 3)

	names := []string{list[0].Name, list[1].Name, list[2].Name}
	assert.Equal(t, []string{"main", "fake0", "fake2"}, names)
}

func TestGetReturnsTypedConfigByOrdinal(t *testing.T) {
	list := ConfigList{
		{Ordinal: OrdinalMain, Config: "main-config"},
		{Ordinal: ordinalFake1, Config: 42},
	}

	s, ok := Get[string](list, OrdinalMain)
	assert.True(t, ok)
	assert.Equal(t, "main-config", s)

	n, ok := Get[int](list, ordinalFake1)
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = Get[string](list, ordinalFake1)
	assert.False(t, ok)
}
