package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommand(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	err := app.Run([]string{"velocity", "--addr", "127.0.0.1:7777", "--no-admin", "--log-level", "debug", "config"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "127.0.0.1:7777")
	assert.Contains(t, out.String(), "enabled: false")
	assert.Contains(t, out.String(), "level: debug")
}

func TestConfigCommand_Invalid(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}

	err := app.Run([]string{"velocity", "--log-format", "xml", "config"})
	assert.ErrorContains(t, err, "log.format")
}
