package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw   string
		want  Status
		known bool
	}{
		{"UP", StatusUnderProcess, true},
		{"up", StatusUnderProcess, true},
		{"Under Process", StatusUnderProcess, true},
		{"  under   process ", StatusUnderProcess, true},
		{"DP", StatusDispatch, true},
		{"Dispatch", StatusDispatch, true},
		{"Approved", StatusApproved, true},
		{"Rejected", StatusUnderProcess, false},
		{"", StatusUnderProcess, false},
		{"???", StatusUnderProcess, false},
	}
	for _, tc := range cases {
		got, known := NormalizeStatus(tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
		assert.Equal(t, tc.known, known, "raw=%q", tc.raw)
	}
}

func TestStatusPhrase(t *testing.T) {
	assert.Equal(t, "under process", StatusUnderProcess.Phrase())
	assert.Equal(t, "dispatch", StatusDispatch.Phrase())
	assert.Equal(t, "approved", StatusApproved.Phrase())
	assert.Equal(t, "under process", Status("bogus").Phrase())
}
