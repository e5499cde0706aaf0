package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) error {
	root := newRootCmd(&app{})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	return root.Execute()
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	err := execute("migrate", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown migrate command "sideways"`)
}

func TestMigrateRequiresCommand(t *testing.T) {
	require.Error(t, execute("migrate"))
}

func TestCreateUserRequiresFlags(t *testing.T) {
	err := execute("create-user", "--email", "ops@school.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	err := execute("create-user", "--email", "ops@school.test", "--name", "Ops", "--password", "password123", "--role", "ROOT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role must be ADMIN or STAFF")
}
