package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperation_IsFullState(t *testing.T) {
	assert.True(t, Operation{OpType: OpSyncImport}.IsFullState())
	assert.True(t, Operation{OpType: OpBackupImport}.IsFullState())
	assert.False(t, Operation{OpType: OpUpdate}.IsFullState())
}

func TestOperation_IsMeaningfulUserData(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want bool
	}{
		{"task create", Operation{OpType: OpCreate, EntityType: EntityTask}, true},
		{"note update", Operation{OpType: OpUpdate, EntityType: EntityNote}, true},
		{"project delete", Operation{OpType: OpDelete, EntityType: EntityProject}, false},
		{"unknown entity update", Operation{OpType: OpUpdate, EntityType: "SETTINGS"}, false},
		{"full-state import", Operation{OpType: OpBackupImport, EntityType: EntityAll}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.IsMeaningfulUserData())
		})
	}
}
