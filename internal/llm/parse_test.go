package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences_JSONFence(t *testing.T) {
	text := "```json\n[{\"id\": \"m-1\"}]\n```"
	assert.Equal(t, `[{"id": "m-1"}]`, StripFences(text))
}

func TestStripFences_BareFence(t *testing.T) {
	text := "```\n{\"ok\": true}\n```"
	assert.Equal(t, `{"ok": true}`, StripFences(text))
}

func TestStripFences_NoFence(t *testing.T) {
	assert.Equal(t, `{"ok": true}`, StripFences(`  {"ok": true}  `))
}

func TestStripFences_LeadingProse(t *testing.T) {
	text := "Here is the result:\n```json\n[1, 2]\n```\nLet me know if you need more."
	assert.Equal(t, "[1, 2]", StripFences(text))
}

func TestStripFences_UnterminatedFence(t *testing.T) {
	assert.Equal(t, "[1]", StripFences("```json\n[1]"))
}

func TestParseList_Valid(t *testing.T) {
	type item struct {
		ID string `json:"id"`
	}

	items, err := ParseList[item]("```json\n[{\"id\": \"a\"}, {\"id\": \"b\"}]\n```")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}

func TestParseList_Malformed(t *testing.T) {
	_, err := ParseList[struct{}]("I could not produce JSON, sorry.")
	assert.Error(t, err)
}

func TestParseList_Empty(t *testing.T) {
	_, err := ParseList[struct{}]("")
	assert.Error(t, err)
}

func TestParseObject_Valid(t *testing.T) {
	type brief struct {
		Title string `json:"title"`
	}

	obj, err := ParseObject[brief]("```json\n{\"title\": \"Weekly Brief\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Weekly Brief", obj.Title)
}

func TestParseObject_Malformed(t *testing.T) {
	obj, err := ParseObject[struct{}]("{not json")
	assert.Error(t, err)
	assert.Nil(t, obj)
}
