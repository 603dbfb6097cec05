package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchReorderIDs(t *testing.T) {
	existing := []uint{1, 2, 3}

	testCases := []struct {
		name    string
		ordered []uint
		wantErr bool
	}{
		{"full permutation", []uint{3, 1, 2}, false},
		{"identity order", []uint{1, 2, 3}, false},
		{"partial move keeps first in place", []uint{1, 3, 2}, false},
		{"foreign id", []uint{1, 2, 42}, true},
		{"duplicate id", []uint{1, 2, 2}, true},
		{"too short", []uint{1, 2}, true},
		{"too long", []uint{1, 2, 3, 3}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := matchReorderIDs(existing, tc.ordered)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatchReorderIDsEmptyParent(t *testing.T) {
	assert.NoError(t, matchReorderIDs(nil, nil))
	assert.Error(t, matchReorderIDs(nil, []uint{1}))
}
