package template

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type columns []string

func (c columns) Names() []string { return c }

type point struct{ x, y int }

func (p point) Components() []any { return []any{p.x, p.y} }

type upperEncoder struct{}

func (upperEncoder) Encode(v any) (any, error) {
	if s, ok := v.(string); ok {
		return "enc:" + s, nil
	}
	return v, nil
}

type failingEncoder struct{}

func (failingEncoder) Encode(any) (any, error) { return nil, errors.New("boom") }

func compile(t *testing.T, tpl Template) *Compiled {
	t.Helper()
	c, err := Compile(tpl, nil)
	require.NoError(t, err)
	return c
}

func TestCompileScalarParameters(t *testing.T) {
	c := compile(t, MustNew("SELECT * FROM employee WHERE id = {} AND name = {}", 42, "bob"))

	assert.Equal(t, "SELECT * FROM employee WHERE id = ? AND name = ?", c.SQL())
	assert.False(t, c.Batch())
	assert.Equal(t, 1, c.Width())
	assert.Equal(t, []any{42, "bob"}, c.Args())
}

func TestCompileNilBindsNull(t *testing.T) {
	c := compile(t, MustNew("UPDATE t SET a = {}", nil))

	assert.Equal(t, "UPDATE t SET a = ?", c.SQL())
	assert.Equal(t, []any{nil}, c.Args())
}

func TestCompileIdentifierIsSpliced(t *testing.T) {
	c := compile(t, MustNew("SELECT * FROM {} WHERE id = {}", MustIdentifier("employee"), 1))

	assert.Equal(t, "SELECT * FROM employee WHERE id = ?", c.SQL())
	assert.Equal(t, []any{1}, c.Args())
}

func TestCompileColumnList(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "plain", text: "SELECT {} FROM employee", want: "SELECT id, name FROM employee"},
		{name: "alias", text: "SELECT e.{} FROM employee e", want: "SELECT e.id, e.name FROM employee e"},
		{name: "alias with spaces", text: "SELECT e . {} FROM employee e", want: "SELECT e.id, e.name FROM employee e"},
		{name: "no space before alias", text: "SELECT{} FROM employee", want: "SELECTid, name FROM employee"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := compile(t, MustNew(tt.text, columns{"id", "", "name"}))
			assert.Equal(t, tt.want, c.SQL())
			assert.Empty(t, c.Args())
		})
	}
}

func TestCompileEntriesAndValues(t *testing.T) {
	names := []string{"id", "", "name"}
	row := func(_, i int) any { return []any{7, "skipped", "alice"}[i] }

	c := compile(t, MustNew("UPDATE employee SET {} WHERE id = {}", NewEntries(names, 1, row), 7))
	assert.Equal(t, "UPDATE employee SET id = ?, name = ? WHERE id = ?", c.SQL())
	assert.Equal(t, []any{7, "alice", 7}, c.Args())

	c = compile(t, MustNew("INSERT INTO employee ({}) VALUES ({})", columns(names), NewValues(names, 1, row)))
	assert.Equal(t, "INSERT INTO employee (id, name) VALUES (?, ?)", c.SQL())
	assert.Equal(t, []any{7, "alice"}, c.Args())
}

func TestCompileCompositeExpands(t *testing.T) {
	c := compile(t, MustNew("SELECT * FROM shape WHERE (x, y) = ({})", point{1, 2}))

	assert.Equal(t, "SELECT * FROM shape WHERE (x, y) = (?, ?)", c.SQL())
	assert.Equal(t, []any{1, 2}, c.Args())
}

func TestCompileSliceIsBatch(t *testing.T) {
	c := compile(t, MustNew("INSERT INTO t (a, b) VALUES ({}, {})", []int{1, 2, 3}, "const"))

	assert.Equal(t, "INSERT INTO t (a, b) VALUES (?, ?)", c.SQL())
	assert.True(t, c.Batch())
	assert.Equal(t, 3, c.Width())
	assert.Equal(t, [][]any{{1, "const"}, {2, "const"}, {3, "const"}}, c.Rows())
}

func TestCompileSliceOfComposites(t *testing.T) {
	c := compile(t, MustNew("INSERT INTO shape (x, y) VALUES ({})", []point{{1, 2}, {3, 4}}))

	assert.Equal(t, "INSERT INTO shape (x, y) VALUES (?, ?)", c.SQL())
	assert.Equal(t, [][]any{{1, 2}, {3, 4}}, c.Rows())
}

func TestCompileByteSliceIsScalar(t *testing.T) {
	c := compile(t, MustNew("INSERT INTO blob (data) VALUES ({})", []byte("abc")))

	assert.False(t, c.Batch())
	assert.Equal(t, []any{[]byte("abc")}, c.Args())
}

func TestCompileWidthOneBroadcasts(t *testing.T) {
	values := NewValues([]string{"a"}, 2, func(row, _ int) any { return row * 10 })
	c := compile(t, MustNew("INSERT INTO t (a, b) VALUES ({}, {})", values, []string{"only"}))

	assert.Equal(t, [][]any{{0, "only"}, {10, "only"}}, c.Rows())
}

func TestCompileBatchWidthMismatch(t *testing.T) {
	_, err := Compile(MustNew("INSERT INTO t VALUES ({}, {})", []int{1, 2}, []int{1, 2, 3}), nil)

	require.ErrorIs(t, err, ErrBatchSizeMismatch)
	assert.Equal(t, "batches are of different sizes", err.Error())
}

func TestCompileEmptyBatch(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "empty slice", value: []int{}},
		{name: "empty values", value: NewValues([]string{"a"}, 0, nil)},
		{name: "empty entries", value: NewEntries([]string{"a"}, 0, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(MustNew("SELECT {}", tt.value), nil)
			require.ErrorIs(t, err, ErrEmptyBatch)
			assert.Contains(t, err.Error(), fmt.Sprintf("parameter 0 of type %T should not be empty", tt.value))
		})
	}
}

func TestCompileUsesEncoder(t *testing.T) {
	c, err := Compile(MustNew("SELECT {}, {}", "a", 1), upperEncoder{})
	require.NoError(t, err)
	assert.Equal(t, []any{"enc:a", 1}, c.Args())

	_, err = Compile(MustNew("SELECT {}", "a"), failingEncoder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCompileIsDeterministic(t *testing.T) {
	tpl := MustNew("SELECT e.{} FROM {} e WHERE id IN ({})", columns{"id", "name"}, MustIdentifier("employee"), []int{1, 2})

	first := compile(t, tpl)
	second := compile(t, tpl)

	assert.Equal(t, first.SQL(), second.SQL())
	assert.Equal(t, first.Rows(), second.Rows())
}

func TestCompiledRowsAreCopies(t *testing.T) {
	c := compile(t, MustNew("SELECT {}", 1))

	c.Args()[0] = 99
	c.Rows()[0][0] = 99

	assert.Equal(t, []any{1}, c.Args())
}

func TestCompiledReplaceOnlyTouchesEmittedPlaceholders(t *testing.T) {
	c := compile(t, MustNew("SELECT '??', 'why?' FROM {} WHERE (x, y) = ({}) AND note = {}",
		MustIdentifier("shape"), point{1, 2}, "q?"))

	assert.Equal(t, "SELECT '??', 'why?' FROM shape WHERE (x, y) = (?, ?) AND note = ?", c.SQL())
	assert.Equal(t, 3, c.Placeholders())

	got, err := c.Replace([]string{"$1", "$2", "$3"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT '??', 'why?' FROM shape WHERE (x, y) = ($1, $2) AND note = $3", got)
}

func TestCompiledReplaceAfterAliasedColumnList(t *testing.T) {
	c := compile(t, MustNew("SELECT e.{} FROM employee e WHERE e.id = {} AND e.tag = '?'", columns{"id", "name"}, 1))

	got, err := c.Replace([]string{":1"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT e.id, e.name FROM employee e WHERE e.id = :1 AND e.tag = '?'", got)
}

func TestCompiledReplaceTokenCountMismatch(t *testing.T) {
	c := compile(t, MustNew("SELECT {}, {}", 1, 2))

	_, err := c.Replace([]string{"$1"})
	assert.ErrorIs(t, err, ErrPlaceholderCount)
}
