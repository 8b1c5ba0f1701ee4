package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqltx/database/template"
	"github.com/gaborage/go-sqltx/database/types"
)

type employee struct {
	ID     int64
	Name   string
	Salary float64
}

func employeeExtractor() *Extractor[employee] {
	return MustExtractor(
		Field("id", func(e employee) int64 { return e.ID }, func(e *employee, v int64) { e.ID = v }),
		Field("name", func(e employee) string { return e.Name }, func(e *employee, v string) { e.Name = v }),
		Field("salary", func(e employee) float64 { return e.Salary }, func(e *employee, v float64) { e.Salary = v }),
	)
}

func TestNewExtractorValidation(t *testing.T) {
	_, err := NewExtractor(
		Field("id", func(e employee) int64 { return e.ID }, nil),
		Field("id", func(e employee) int64 { return e.ID }, nil),
	)
	require.ErrorIs(t, err, ErrDuplicateField)

	_, err = NewExtractor(Field("bad name", func(e employee) int64 { return e.ID }, nil))
	require.ErrorIs(t, err, template.ErrInvalidIdentifier)
}

func TestExtractorInsertTemplate(t *testing.T) {
	ext := employeeExtractor()
	e := employee{ID: 1, Name: "alice", Salary: 10}

	c, err := template.Compile(template.MustNew("INSERT INTO employee ({}) VALUES ({})", ext, ext.Values(e)), nil)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO employee (id, name, salary) VALUES (?, ?, ?)", c.SQL())
	assert.Equal(t, []any{int64(1), "alice", float64(10)}, c.Args())
}

func TestExtractorUpdateExcludingKey(t *testing.T) {
	ext := employeeExtractor()
	set, err := ext.Excluding("id")
	require.NoError(t, err)

	e := employee{ID: 3, Name: "bob", Salary: 20}
	c, err := template.Compile(template.MustNew("UPDATE employee SET {} WHERE id = {}", set.Entries(e), e.ID), nil)
	require.NoError(t, err)

	assert.Equal(t, "UPDATE employee SET name = ?, salary = ? WHERE id = ?", c.SQL())
	assert.Equal(t, []any{"bob", float64(20), int64(3)}, c.Args())
	assert.Equal(t, []string{"", "name", "salary"}, set.Names())
}

func TestExtractorBatch(t *testing.T) {
	ext := employeeExtractor()
	batch := []employee{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}

	c, err := template.Compile(template.MustNew("INSERT INTO employee ({}) VALUES ({})", ext, ext.Batch(batch)), nil)
	require.NoError(t, err)

	assert.True(t, c.Batch())
	assert.Equal(t, [][]any{{int64(1), "a", float64(0)}, {int64(2), "b", float64(0)}}, c.Rows())

	_, err = template.Compile(template.MustNew("INSERT INTO employee VALUES ({})", ext.Batch(nil)), nil)
	require.ErrorIs(t, err, template.ErrEmptyBatch)
}

func TestExtractorProjectionRejectsUnknownNames(t *testing.T) {
	ext := employeeExtractor()

	_, err := ext.Only("id", "nope")
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = ext.Excluding("nope")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestExtractorMap(t *testing.T) {
	ext := employeeExtractor()

	row := types.NewStaticRow([]string{"id", "name", "salary"}, []any{int64(9), []byte("carol"), 99.5}, nil)
	e, err := ext.Map(row)
	require.NoError(t, err)
	assert.Equal(t, employee{ID: 9, Name: "carol", Salary: 99.5}, e)

	only, err := ext.Only("name")
	require.NoError(t, err)
	e, err = only.Mapper()(types.NewStaticRow([]string{"name"}, []any{"dave"}, nil))
	require.NoError(t, err)
	assert.Equal(t, employee{Name: "dave"}, e)

	_, err = ext.Map(types.NewStaticRow(nil, []any{"x", "y", 1.0}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field id")
}

func TestScalarMappers(t *testing.T) {
	row := types.NewStaticRow([]string{"v"}, []any{int64(12)}, nil)

	s, err := String(row)
	require.NoError(t, err)
	assert.Equal(t, "12", s)

	i, err := Int(row)
	require.NoError(t, err)
	assert.Equal(t, 12, i)

	i64, err := Int64(row)
	require.NoError(t, err)
	assert.Equal(t, int64(12), i64)

	_, err = Bytes(row)
	require.Error(t, err)

	f, err := Scan[float64]()(row)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, f, 0.0001)
}
