package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/deckdrill/internal/protocol"
)

func TestBuildDevice(t *testing.T) {
	t.Cleanup(func() { deviceType, columns, rows = "streamdeck", 0, 0 })

	deviceType = "mini"
	d, err := buildDevice()
	require.NoError(t, err)
	assert.Equal(t, protocol.DeviceTypeStreamDeckMini, d.Type)
	assert.Equal(t, protocol.Size{Columns: 3, Rows: 2}, d.Size)

	columns, rows = 4, 4
	d, err = buildDevice()
	require.NoError(t, err)
	assert.Equal(t, 16, d.Size.Keys())

	deviceType, columns, rows = "pedal", 0, 0
	_, err = buildDevice()
	assert.Error(t, err)

	deviceType = "toaster"
	_, err = buildDevice()
	assert.ErrorContains(t, err, "toaster")
}
