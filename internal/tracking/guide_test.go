package tracking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindGuideCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{text: "transferred via guia ABC-123", want: "ABC-123", ok: true},
		{text: "GUIA   x_9-2 entregada", want: "x_9-2", ok: true},
		{text: "guia A1 y guia B2", want: "A1", ok: true},
		{text: "entregado con guia ÑU-12, gracias", want: "ÑU-12", ok: true},
		{text: "guia CÓD-9.", want: "CÓD-9", ok: true},
		{text: "sin guia", ok: false},
		{text: "guiaABC", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := FindGuideCode(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestEventGuideCodeScansLabelThenComments(t *testing.T) {
	t.Parallel()
	ev := NormalizedEvent{
		NodeLabel: "Centro de distribucion",
		Raw: RawNode{
			"comment": json.RawMessage(`null`),
			"remarks": json.RawMessage(`"Entregado a courier local, guia LX-77"`),
			"notes":   json.RawMessage(`"guia SHOULD-NOT-WIN"`),
		},
	}
	code, ok := ev.GuideCode()
	assert.True(t, ok)
	assert.Equal(t, "LX-77", code)

	ev.NodeLabel = "guia FROM-LABEL"
	code, _ = ev.GuideCode()
	assert.Equal(t, "FROM-LABEL", code)

	_, ok = NormalizedEvent{NodeLabel: "Hub"}.GuideCode()
	assert.False(t, ok)
}
