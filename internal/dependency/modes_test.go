package dependency

import (
	"context"
	"errors"
	"testing"

	"devservices/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modesFixture(t *testing.T) (*Graph, *config.Service) {
	t.Helper()
	snuba := service("snuba", map[string][]string{"default": {"snuba", "clickhouse"}},
		local("snuba"), local("clickhouse"))
	sentry := service("sentry", map[string][]string{
		"default":  {"redis", "postgres"},
		"snuba":    {"redis", "snuba"},
		"symbolic": {"symbolicator"},
	}, local("redis"), local("postgres"), local("symbolicator"), remote("snuba", "snuba", ""))

	g, err := NewBuilder(newFakeResolver(snuba).resolve).Build(context.Background(), sentry, nil)
	require.NoError(t, err)
	return g, sentry
}

func TestSelect_DefaultMode(t *testing.T) {
	g, sentry := modesFixture(t)

	sel, err := Select(g, sentry.Name, sentry.Modes, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, sel.Modes)
	assert.Equal(t, []NodeID{"sentry/postgres", "sentry/redis"}, sel.IDs())
}

func TestSelect_TransitiveClosure(t *testing.T) {
	g, sentry := modesFixture(t)

	sel, err := Select(g, sentry.Name, sentry.Modes, []string{"snuba"})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"sentry/redis", "snuba@main/clickhouse", "snuba@main/snuba"}, sel.IDs())
	assert.True(t, sel.Has("snuba@main/clickhouse"), "pulled in through snuba")

	assert.Equal(t, [][]NodeID{
		{"sentry/redis", "snuba@main/clickhouse"},
		{"snuba@main/snuba"},
	}, sel.Layers())
}

func TestSelect_ModeUnion(t *testing.T) {
	g, sentry := modesFixture(t)

	for _, pair := range [][2]string{{"default", "snuba"}, {"snuba", "symbolic"}, {"default", "symbolic"}} {
		a, err := Select(g, sentry.Name, sentry.Modes, []string{pair[0]})
		require.NoError(t, err)
		b, err := Select(g, sentry.Name, sentry.Modes, []string{pair[1]})
		require.NoError(t, err)
		both, err := Select(g, sentry.Name, sentry.Modes, []string{pair[0], pair[1]})
		require.NoError(t, err)

		union := map[NodeID]bool{}
		for id := range a.Nodes {
			union[id] = true
		}
		for id := range b.Nodes {
			union[id] = true
		}
		assert.Equal(t, union, both.Nodes, "modes %v", pair)
	}
}

func TestSelect_UnknownMode(t *testing.T) {
	g, sentry := modesFixture(t)

	_, err := Select(g, sentry.Name, sentry.Modes, []string{"default", "nonexistent"})

	var graphErr *GraphError
	require.True(t, errors.As(err, &graphErr))
	assert.Equal(t, ErrModeNotFound, graphErr.Kind)
	assert.Equal(t, "nonexistent", graphErr.Mode)
	assert.Equal(t, []string{"default", "snuba", "symbolic"}, graphErr.AvailableModes)
	assert.Contains(t, err.Error(), "available modes: default, snuba, symbolic")
}

func TestCheckModes_Deduplicates(t *testing.T) {
	modes, err := CheckModes("sentry", map[string][]string{"default": nil, "b": nil}, []string{"b", "default", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "default"}, modes)
}
