package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "backup")
	assert.Contains(t, names, "purge")
	assert.Contains(t, names, "report")
	assert.Contains(t, names, "audit")
}

func TestAuditWindowFlagDefault(t *testing.T) {
	f := auditCmd.Flags().Lookup("hours")
	assert.NotNil(t, f)
	assert.Equal(t, "24", f.DefValue)
}
