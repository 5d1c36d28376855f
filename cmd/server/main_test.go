package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppCommands(t *testing.T) {
	app := newApp()

	require.Len(t, app.Commands, 1)
	serveCmd := app.Commands[0]
	assert.Equal(t, "serve", serveCmd.Name)

	var names []string
	for _, f := range serveCmd.Flags {
		names = append(names, f.Names()[0])
	}
	assert.ElementsMatch(t, []string{"config", "addr", "log-level"}, names)
}

func TestServeRejectsBadConfig(t *testing.T) {
	err := newApp().Run(context.Background(), []string{"signet", "serve", "--config", "does-not-exist.yaml"})
	assert.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "ftp")
	err = newApp().Run(context.Background(), []string{"signet", "serve"})
	assert.Error(t, err)
}

func TestServeRejectsBadLogLevel(t *testing.T) {
	err := newApp().Run(context.Background(), []string{"signet", "serve", "--log-level", "chatty"})
	assert.Error(t, err)
}
