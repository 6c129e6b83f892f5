// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		require.True(t, pattern.MatchString(name), "file %s should match NNNNNN_name.(up|down).sql", name)
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[base] = true
		}
		if base, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[base] = true
		}
	}
	assert.Equal(t, ups, downs, "every up migration has a down migration")
	assert.True(t, ups["000001_users"])
	assert.True(t, ups["000002_tokens"])
}

func TestMigrationsFS_TokenTablesCascade(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/000002_tokens.up.sql")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(sql), "ON DELETE CASCADE"),
		"refresh and reset tokens follow their user")
	assert.Contains(t, string(sql), "refresh_tokens_user_id_key")
}
