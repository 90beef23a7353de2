package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalJSONDefaultsEnabled(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantEnabled bool
	}{
		{
			name:        "enabled omitted",
			payload:     `{"id":"a","kind":"transform"}`,
			wantEnabled: true,
		},
		{
			name:        "enabled false",
			payload:     `{"id":"a","kind":"transform","enabled":false}`,
			wantEnabled: false,
		},
		{
			name:        "enabled true",
			payload:     `{"id":"a","kind":"transform","enabled":true}`,
			wantEnabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var node Node
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &node))
			assert.Equal(t, "a", node.ID)
			assert.Equal(t, KindTransform, node.Kind)
			assert.Equal(t, tt.wantEnabled, node.Enabled)
		})
	}
}

func TestDefinition_UnmarshalJSONEnablesNodesByDefault(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": "start", "kind": "start"},
			{"id": "off", "kind": "wait", "enabled": false},
			{"id": "end", "kind": "end"}
		],
		"edges": [
			{"source": "start", "target": "off"},
			{"source": "off", "target": "end"}
		]
	}`

	var def Definition
	require.NoError(t, json.Unmarshal([]byte(raw), &def))
	require.Len(t, def.Nodes, 3)

	assert.True(t, def.GetNode("start").Enabled)
	assert.False(t, def.GetNode("off").Enabled)
	assert.True(t, def.GetNode("end").Enabled)

	report := NewValidator().Validate(&def)
	assert.True(t, report.Valid, "errors: %v", report.Errors)
}
