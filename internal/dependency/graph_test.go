package dependency

import (
	"testing"

	"devservices/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainGraph() *Graph {
	g := New()
	g.AddNode(Node{ID: "s/kafka", Kind: config.KindLocal, Unit: "kafka"})
	g.AddNode(Node{ID: "s/zookeeper", Kind: config.KindLocal, Unit: "zookeeper"})
	g.AddNode(Node{ID: "snuba@master/snuba", Kind: config.KindRemote, Unit: "snuba",
		DependsOn: []NodeID{"s/kafka", "s/zookeeper"}})
	g.AddNode(Node{ID: "s/web", Kind: config.KindSupervisor, Program: &config.Program{Name: "web"},
		DependsOn: []NodeID{"snuba@master/snuba"}})
	return g
}

func TestAddNode(t *testing.T) {
	g := New()
	deps := []NodeID{"a"}
	g.AddNode(Node{ID: "n1", DependsOn: deps})
	deps[0] = "mutated"

	require.NotNil(t, g.Get("n1"))
	assert.Equal(t, []NodeID{"a"}, g.Get("n1").DependsOn, "AddNode copies its input")

	g.AddNode(Node{ID: "n1", Name: "replaced"})
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, "replaced", g.Get("n1").Name)
	assert.Nil(t, g.Get("missing"))
}

func TestDependenciesAndDependents(t *testing.T) {
	g := chainGraph()

	assert.ElementsMatch(t, []NodeID{"s/kafka", "s/zookeeper"}, g.Dependencies("snuba@master/snuba"))
	assert.Empty(t, g.Dependencies("s/kafka"))
	assert.Nil(t, g.Dependencies("missing"))

	assert.Equal(t, []NodeID{"snuba@master/snuba"}, g.Dependents("s/kafka"))
	assert.Empty(t, g.Dependents("s/web"))
}

func TestLayers(t *testing.T) {
	g := chainGraph()

	layers := g.Layers(g.Closure("s/web"))
	assert.Equal(t, [][]NodeID{
		{"s/kafka", "s/zookeeper"},
		{"snuba@master/snuba"},
		{"s/web"},
	}, layers)

	reverse := g.ReverseLayers(g.Closure("s/web"))
	assert.Equal(t, []NodeID{"s/web"}, reverse[0])
	assert.Equal(t, []NodeID{"s/kafka", "s/zookeeper"}, reverse[2])
}

func TestLayers_Subset(t *testing.T) {
	g := chainGraph()

	layers := g.Layers(map[NodeID]bool{"s/kafka": true})
	assert.Equal(t, [][]NodeID{{"s/kafka"}}, layers)
}

func TestNode_RunnableAndToggleable(t *testing.T) {
	tests := []struct {
		name       string
		node       Node
		container  bool
		local      bool
		toggleable bool
	}{
		{
			name:      "compose service",
			node:      Node{Kind: config.KindLocal, Unit: "redis"},
			container: true,
			local:     true,
		},
		{
			name:      "supervisor program",
			node:      Node{Kind: config.KindSupervisor, Program: &config.Program{Name: "web"}},
			container: true,
			local:     true,
		},
		{
			name:       "remote with unit and program",
			node:       Node{Kind: config.KindRemote, Unit: "snuba", Program: &config.Program{Name: "snuba"}},
			container:  true,
			local:      true,
			toggleable: true,
		},
		{
			name:       "remote grouping node",
			node:       Node{Kind: config.KindRemote},
			toggleable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.container, tt.node.Runnable(false))
			assert.Equal(t, tt.local, tt.node.Runnable(true))
			assert.Equal(t, tt.toggleable, tt.node.Toggleable())
		})
	}
}
