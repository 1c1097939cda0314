package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/riskgate/internal/models"
)

func TestReadCSV(t *testing.T) {
	doc := `login_hour, high_risk_country, ip_score, extra
14, false, 0.5, ignored
3, 1, 1, x
`
	rows, err := readCSV(strings.NewReader(doc), []string{"ip_score", "login_hour", "high_risk_country"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 14, 0}, {1, 3, 1}}, rows)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"missing column", "ip_score\n0.5\n"},
		{"not a number", "ip_score,login_hour\nhigh,3\n"},
		{"short record", "ip_score,login_hour\n0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCSV(strings.NewReader(tt.doc), []string{"ip_score", "login_hour"})
			assert.Error(t, err)
		})
	}
}

func TestVectorsToRows(t *testing.T) {
	rows := vectorsToRows([]models.FeatureVector{{IPScore: 1, LoginHour: 2, NightLogin: true}})
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(models.FeatureNames))
	assert.Equal(t, 1.0, rows[0][0])
}
