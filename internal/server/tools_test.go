package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expected := []string{
		"omr_grade_auto",
		"omr_grade_manual",
		"omr_rectify",
		"omr_report",
		"omr_normalize_key",
		"omr_save_key",
		"omr_get_key",
		"omr_list_subjects",
		"omr_templates",
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, expected, names)
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			assert.NotEmpty(t, tool.Description)
			require.NotNil(t, tool.InputSchema)
			assert.Equal(t, "object", tool.InputSchema["type"])

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			require.True(t, ok, "properties should be a map")

			required, _ := tool.InputSchema["required"].([]string)
			for _, name := range required {
				assert.Contains(t, props, name, "required property %q is not declared", name)
			}
		})
	}
}

func TestToolDefinitions_PhotoTools(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		switch tool.Name {
		case "omr_grade_auto", "omr_grade_manual", "omr_rectify", "omr_report":
			required := tool.InputSchema["required"].([]string)
			assert.Contains(t, required, "path", tool.Name)
		}
	}
}

func TestToolDefinitions_TemplateEnum(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		props := tool.InputSchema["properties"].(map[string]interface{})
		tpl, ok := props["template"].(map[string]interface{})
		if !ok {
			continue
		}
		assert.Equal(t, []string{"60", "80"}, tpl["enum"], tool.Name)
		assert.Equal(t, "60", tpl["default"], tool.Name)
	}
}

func TestToolDefinitions_JSON(t *testing.T) {
	data, err := json.Marshal(GetToolDefinitions())
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(GetToolDefinitions()))
	for _, tool := range decoded {
		assert.Contains(t, tool, "inputSchema")
	}
}
