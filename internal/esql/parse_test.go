package esql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition("process.name|like|power")
	require.NoError(t, err)
	assert.Equal(t, FilterCondition{Field: "process.name", Operator: OpLike, Value: "power", Connector: And}, c)

	c, err = ParseCondition("or:source.ip|==|8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, Or, c.Connector)
	assert.Equal(t, OpEq, c.Operator)

	c, err = ParseCondition("user.name|is  not null")
	require.NoError(t, err)
	assert.Equal(t, OpIsNotNull, c.Operator)
	assert.Empty(t, c.Value)

	c, err = ParseCondition("url.full|==|http://x/?a=1|b=2")
	require.NoError(t, err)
	assert.Equal(t, "http://x/?a=1|b=2", c.Value)
}

func TestParseCondition_Errors(t *testing.T) {
	for _, in := range []string{
		"nofields",
		"|==|x",
		"host.name|~=|x",
		"host.name|==",
		"host.name|LIKE|",
	} {
		_, err := ParseCondition(in)
		assert.Error(t, err, in)
	}
}

func TestParseSort(t *testing.T) {
	field, order, err := ParseSort("@timestamp")
	require.NoError(t, err)
	assert.Equal(t, "@timestamp", field)
	assert.Equal(t, Desc, order)

	field, order, err = ParseSort("event.created:asc")
	require.NoError(t, err)
	assert.Equal(t, "event.created", field)
	assert.Equal(t, Asc, order)

	field, _, err = ParseSort("")
	require.NoError(t, err)
	assert.Empty(t, field)

	_, _, err = ParseSort("x:sideways")
	assert.Error(t, err)
}
