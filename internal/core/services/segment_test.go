package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

func TestSegmentText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two sentences",
			input: "Première phrase. Deuxième phrase.",
			want:  []string{"Première phrase.", "Deuxième phrase."},
		},
		{
			name:  "abbreviation protected",
			input: "M. Dupont arrive. Il est tard.",
			want:  []string{"M. Dupont arrive.", "Il est tard."},
		},
		{
			name:  "decimal number protected",
			input: "La valeur est 3.14 exactement. Vraiment.",
			want:  []string{"La valeur est 3.14 exactement.", "Vraiment."},
		},
		{
			name:  "question and exclamation",
			input: "Vraiment? Oui! Certainement.",
			want:  []string{"Vraiment?", "Oui!", "Certainement."},
		},
		{
			name:  "no boundary",
			input: "une seule phrase sans fin",
			want:  []string{"une seule phrase sans fin"},
		},
		{
			name:  "lowercase continuation not split",
			input: "Voir p. 12 pour les détails.",
			want:  []string{"Voir p. 12 pour les détails."},
		},
		{
			name:  "empty",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentText(tt.input, "fr"))
		})
	}
}

func TestResegment(t *testing.T) {
	units := newMockUnitStore()
	units.linksDropped = 2
	docID := int64(1)
	units.byDoc[docID] = []domain.Unit{
		lineUnit(1, docID, 1, extPtr(1), "Première phrase. Deuxième phrase."),
		lineUnit(2, docID, 2, extPtr(2), "Troisième."),
	}
	svc := NewSegmentService(units)

	report, err := svc.Resegment(context.Background(), docID, "fr", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.UnitsInput)
	assert.Equal(t, 3, report.UnitsOutput)
	assert.Equal(t, int64(2), report.LinksDropped)
	assert.NotEmpty(t, report.Warnings)

	replaced := units.replaced[docID]
	require.Len(t, replaced, 3)
	// Fresh global numbering, no anchors carried over.
	for i, u := range replaced {
		assert.Equal(t, i+1, u.N)
		assert.Equal(t, domain.UnitLine, u.Kind)
		assert.Nil(t, u.ExternalID)
	}
	assert.Equal(t, "Première phrase.", replaced[0].TextNorm)
}

func TestResegment_NoLineUnits(t *testing.T) {
	units := newMockUnitStore()
	svc := NewSegmentService(units)

	report, err := svc.Resegment(context.Background(), 9, "und", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.UnitsInput)
	assert.Equal(t, 0, report.UnitsOutput)
	assert.NotEmpty(t, report.Warnings)
	assert.Empty(t, units.replaced)
}
