package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelStyleTableComplete(t *testing.T) {
	require.NoError(t, ValidateChannelStyles())

	for _, channel := range []ChannelCategory{ChannelGeneral, ChannelPedagogical, ChannelEvents, ChannelBilling, ChannelUrgent} {
		style := channel.Style()
		assert.NotEmpty(t, style.Color, "channel %s", channel)
		assert.NotEmpty(t, style.Icon, "channel %s", channel)
	}
}

func TestChannelStyleFallsBackToDefault(t *testing.T) {
	style := ChannelCategory("NEWSLETTER").Style()
	assert.Equal(t, defaultChannelStyle, style)
}

func TestChannelStyleUrgent(t *testing.T) {
	style := ChannelUrgent.Style()
	assert.Equal(t, "#dc2626", style.Color)
	assert.Equal(t, "alert-triangle", style.Icon)
}
