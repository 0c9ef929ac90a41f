package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBatchNormalizes(t *testing.T) {
	b := NewBatch([]string{" p2", "p1", "p2", "", strings.Repeat("x", MaxProductIDLen+1), "a,b"})

	assert.Equal(t, []string{"p1", "p2"}, b.IDs)
	assert.Len(t, b.Skipped, 3)
	assert.Equal(t, "", b.Skipped[0].ProductID)
	assert.Equal(t, "a,b", b.Skipped[2].ProductID)
}
