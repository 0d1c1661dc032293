package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatements(t *testing.T) {
	stmts := statements(schema)
	assert.Len(t, stmts, 4)
	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
	}
	assert.Empty(t, statements(" ;\n; "))
}
