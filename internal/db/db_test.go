package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatements_IncludeHealthAndRegistry(t *testing.T) {
	stmts := statements()

	assert.Equal(t, "SELECT 1", stmts["health_check"])
	for _, name := range []string{"list_beacons", "upsert_beacon", "delete_beacon"} {
		assert.Contains(t, stmts, name)
	}
}
