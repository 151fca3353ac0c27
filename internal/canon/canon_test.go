package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_SortedIndentedTrailingNewline(t *testing.T) {
	got, err := JSON(map[string]string{"b": "2", "a": "doesn’t <x>"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"doesn’t <x>\",\n  \"b\": \"2\"\n}\n", string(got))
}

func TestCompact_NoTrailingNewline(t *testing.T) {
	got, err := Compact(map[string]any{"z": true, "a": []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"z":true}`, string(got))
}
