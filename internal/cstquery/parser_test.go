package cstquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

func TestParseSelector_SimpleStep(t *testing.T) {
	q, err := ParseSelector(`class[name="MyClass"]`)
	require.NoError(t, err)

	assert.Equal(t, "class", q.First.Type)
	require.Len(t, q.First.Predicates, 1)
	assert.Equal(t, Predicate{Attr: "name", Op: OpEq, Value: "MyClass"}, q.First.Predicates[0])
	assert.Empty(t, q.Rest)
}

func TestParseSelector_Combinators(t *testing.T) {
	q, err := ParseSelector(`class[name="A"] > method stmt[type="If"]`)
	require.NoError(t, err)

	require.Len(t, q.Rest, 2)
	assert.Equal(t, CombinatorChild, q.Rest[0].Combinator)
	assert.Equal(t, "method", q.Rest[0].Step.Type)
	assert.Equal(t, CombinatorDescendant, q.Rest[1].Combinator)
	assert.Equal(t, "stmt", q.Rest[1].Step.Type)
}

func TestParseSelector_Operators(t *testing.T) {
	cases := []struct {
		selector string
		op       PredicateOp
		value    string
	}{
		{`class[name="A"]`, OpEq, "A"},
		{`class[name!="A"]`, OpNe, "A"},
		{`class[name~="Service"]`, OpContains, "Service"},
		{`class[name^="Base"]`, OpPrefix, "Base"},
		{`class[name$="Handler"]`, OpSuffix, "Handler"},
	}
	for _, tc := range cases {
		q, err := ParseSelector(tc.selector)
		require.NoError(t, err, tc.selector)
		require.Len(t, q.First.Predicates, 1, tc.selector)
		assert.Equal(t, tc.op, q.First.Predicates[0].Op, tc.selector)
		assert.Equal(t, tc.value, q.First.Predicates[0].Value, tc.selector)
	}
}

func TestParseSelector_QuotingAndBarewords(t *testing.T) {
	q, err := ParseSelector(`function[name='тест']`)
	require.NoError(t, err)
	assert.Equal(t, "тест", q.First.Predicates[0].Value)

	q, err = ParseSelector(`method[qualname=A.m]`)
	require.NoError(t, err)
	assert.Equal(t, "A.m", q.First.Predicates[0].Value)

	q, err = ParseSelector(`smallstmt[start_line=42]`)
	require.NoError(t, err)
	assert.Equal(t, "42", q.First.Predicates[0].Value)

	q, err = ParseSelector(`class[name="with \"quotes\""]`)
	require.NoError(t, err)
	assert.Equal(t, `with "quotes"`, q.First.Predicates[0].Value)
}

func TestParseSelector_Pseudos(t *testing.T) {
	q, err := ParseSelector(`smallstmt[type="Return"]:first`)
	require.NoError(t, err)
	require.Len(t, q.First.Pseudos, 1)
	assert.Equal(t, PseudoFirst, q.First.Pseudos[0].Kind)

	q, err = ParseSelector(`stmt:nth(2)`)
	require.NoError(t, err)
	require.Len(t, q.First.Pseudos, 1)
	assert.Equal(t, PseudoNth, q.First.Pseudos[0].Kind)
	assert.Equal(t, 2, q.First.Pseudos[0].Index)

	q, err = ParseSelector(`:last`)
	require.NoError(t, err)
	assert.Equal(t, "*", q.First.Type)
	assert.Equal(t, PseudoLast, q.First.Pseudos[0].Kind)
}

func TestParseSelector_Errors(t *testing.T) {
	cases := []string{
		"",
		"   ",
		":nth()",
		":nth",
		":first(3)",
		":bogus",
		`class[name="unclosed]`,
		`class[name="A"`,
		`class[name%"A"]`,
		"> class",
		"class >",
		"class > > method",
	}
	for _, selector := range cases {
		_, err := ParseSelector(selector)
		require.Error(t, err, "selector %q", selector)
		assert.Equal(t, cerr.CodeCSTQueryParseError, cerr.GetCode(err), "selector %q", selector)
	}
}

func TestParseSelector_Star(t *testing.T) {
	q, err := ParseSelector(`* > node[type="Call"]`)
	require.NoError(t, err)
	assert.Equal(t, "*", q.First.Type)
	require.Len(t, q.Rest, 1)
	assert.Equal(t, CombinatorChild, q.Rest[0].Combinator)
}
