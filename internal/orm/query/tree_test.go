package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	leafA := map[string]interface{}{"key": "a"}
	leafB := map[string]interface{}{"key": "b"}

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, ParseTree(nil, isMetaLeaf))
		assert.Nil(t, ParseTree(map[string]interface{}{}, isMetaLeaf))
		assert.Nil(t, ParseTree([]interface{}{}, isMetaLeaf))
		assert.Nil(t, ParseTree("key=a", isMetaLeaf))
	})

	t.Run("leaf map", func(t *testing.T) {
		n := ParseTree(leafA, isMetaLeaf)
		require.IsType(t, &Leaf{}, n)
		v, ok := n.(*Leaf).Get("key")
		assert.True(t, ok)
		assert.Equal(t, "a", v)
	})

	t.Run("single child forces OR", func(t *testing.T) {
		n := ParseTree([]interface{}{leafA}, isMetaLeaf)
		require.IsType(t, &Group{}, n)
		assert.Equal(t, RelationOr, n.(*Group).Relation)
		assert.Len(t, n.(*Group).Children, 1)
	})

	t.Run("list defaults to AND", func(t *testing.T) {
		n := ParseTree([]map[string]interface{}{leafA, leafB}, isMetaLeaf)
		require.IsType(t, &Group{}, n)
		assert.Equal(t, RelationAnd, n.(*Group).Relation)
	})

	t.Run("numbered keys sort numerically", func(t *testing.T) {
		n := ParseTree(map[string]interface{}{
			"relation": "or",
			"10":       leafB,
			"2":        leafA,
		}, isMetaLeaf)

		g, ok := n.(*Group)
		require.True(t, ok)
		assert.Equal(t, RelationOr, g.Relation)
		require.Len(t, g.Children, 2)
		assert.Equal(t, "a", g.Children[0].(*Leaf).Args["key"])
		assert.Equal(t, "b", g.Children[1].(*Leaf).Args["key"])
	})

	t.Run("clauses list and group args", func(t *testing.T) {
		n := ParseTree(map[string]interface{}{
			"column":  "modified",
			"clauses": []interface{}{leafA, leafB, map[string]interface{}{}},
		}, isMetaLeaf)

		g, ok := n.(*Group)
		require.True(t, ok)
		assert.Len(t, g.Children, 2)
		assert.Equal(t, map[string]interface{}{"column": "modified"}, g.Args)
	})

	t.Run("typed nodes", func(t *testing.T) {
		n := ParseTree(And(NewLeaf(leafA), Or(NewLeaf(leafB), NewLeaf(nil))), isMetaLeaf)

		g, ok := n.(*Group)
		require.True(t, ok)
		require.Len(t, g.Children, 2)
		inner, ok := g.Children[1].(*Group)
		require.True(t, ok)
		assert.Len(t, inner.Children, 1)
	})
}

func TestParseRelation(t *testing.T) {
	assert.Equal(t, RelationOr, ParseRelation("or"))
	assert.Equal(t, RelationOr, ParseRelation(" OR "))
	assert.Equal(t, RelationAnd, ParseRelation("AND"))
	assert.Equal(t, RelationAnd, ParseRelation("xor"))
	assert.Equal(t, RelationAnd, ParseRelation(1))
	assert.Equal(t, "OR", RelationOr.String())
}
