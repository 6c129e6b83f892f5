// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmint/trackmint/pkg/errutil"
)

// fakeMigrate implements migrateIface.
type fakeMigrate struct {
	upErr      error
	downErr    error
	stepsErr   error
	stepsCalls []int
	version    uint
	versionErr error
	dirty      bool
	forceErr   error
	closeSrc   error
	closeDB    error
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Steps(n int) error {
	f.stepsCalls = append(f.stepsCalls, n)
	return f.stepsErr
}
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(_ int) error            { return f.forceErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSrc, f.closeDB }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/trackmint")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"postgres://u:p@db:5432/trackmint", "pgx5://u:p@db:5432/trackmint"},
		{"postgresql://db/trackmint?sslmode=disable", "pgx5://db/trackmint?sslmode=disable"},
		{"pgx5://db/trackmint", "pgx5://db/trackmint"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Up())
	assert.NoError(t, m.Down())
	assert.NoError(t, m.Steps(1))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")
	m := &Migrator{m: &fakeMigrate{upErr: boom, downErr: boom, stepsErr: boom, versionErr: boom, forceErr: boom}}

	errutil.AssertErrorCode(t, m.Up(), "MIGRATION_UP_FAILED")
	errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")

	err := m.Steps(-1)
	errutil.AssertErrorCode(t, err, "MIGRATION_STEPS_FAILED")
	errutil.AssertErrorContext(t, err, "steps", -1)

	_, _, err = m.Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")

	errutil.AssertErrorCode(t, m.Force(1), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_StepsZeroIsNoOp(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}
	require.NoError(t, m.Steps(0))
	assert.Empty(t, fake.stepsCalls)
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &fakeMigrate{version: 2, dirty: true}}
	v, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.True(t, dirty)
}

func TestMigrator_ForceRejectsNegative(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{}}
	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")
	assert.NoError(t, m.Force(0))
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		src, db   error
		component string
	}{
		{"source", errors.New("src"), nil, "source"},
		{"database", nil, errors.New("db"), "database"},
		{"both", errors.New("src"), errors.New("db"), "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &fakeMigrate{closeSrc: tt.src, closeDB: tt.db}}
			err := m.Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}

	assert.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())
}

func TestMigrator_PendingAndApplied(t *testing.T) {
	all, err := allVersions()
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2}, all)

	tests := []struct {
		current uint
		pending []uint
		applied []uint
	}{
		{0, []uint{1, 2}, nil},
		{1, []uint{2}, []uint{1}},
		{2, nil, []uint{1, 2}},
	}
	for _, tt := range tests {
		m := &Migrator{m: &fakeMigrate{version: tt.current}}
		pending, err := m.Pending()
		require.NoError(t, err)
		assert.Equal(t, tt.pending, pending, "pending at %d", tt.current)

		applied, err := m.Applied()
		require.NoError(t, err)
		assert.Equal(t, tt.applied, applied, "applied at %d", tt.current)
	}

	m := &Migrator{m: &fakeMigrate{versionErr: errors.New("down")}}
	_, err = m.Pending()
	assert.Error(t, err)
	_, err = m.Applied()
	assert.Error(t, err)
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_users", name)

	name, err = MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_tokens", name)

	name, err = MigrationName(99)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestAllVersions_ReturnsCopy(t *testing.T) {
	first, err := allVersions()
	require.NoError(t, err)
	first[0] = 999

	second, err := allVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}
