package badgepdf

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	renderer := NewRenderer("", "")

	testCases := []struct {
		name    string
		details Details
	}{
		{
			name: "full",
			details: Details{
				TicketID:    "TKT-2026-MKVIV4CK-D9C4FB27",
				Name:        "José Ramírez",
				Profession:  "Ingeniera de Software",
				CheckedInAt: "2026-03-01T09:00:00Z",
			},
		},
		{
			name:    "missing_fields",
			details: Details{TicketID: "TKT-1"},
		},
		{
			name: "long_name_is_shrunk",
			details: Details{
				TicketID:   "TKT-2",
				Name:       strings.Repeat("Bartholomew ", 8),
				Profession: strings.Repeat("Principal ", 10),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := renderer.Render(tc.details)
			require.NoError(t, err)

			raw, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
			assert.Contains(t, string(raw), "%%EOF")
		})
	}
}
