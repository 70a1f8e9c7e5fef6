package cast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReceiverStatus(t *testing.T) {
	payload := []byte(`{"type":"RECEIVER_STATUS","requestId":1,"status":{"applications":[
		{"appId":"CC1AD845","displayName":"Default Media Receiver","sessionId":"CCA39713-9A4F","transportId":"web-9","statusText":""}
	],"volume":{"level":1,"muted":false}}}`)

	env := parseEnvelope(payload)
	require.Equal(t, typeReceiverStatus, env.Type)
	require.Equal(t, 1, env.RequestID)

	status, err := decodeReceiverStatus(payload)
	require.NoError(t, err)
	assert.Equal(t, "CC1AD845", status.AppID)
	assert.Equal(t, "CCA39713-9A4F", status.SessionID)
	assert.Equal(t, "web-9", status.TransportID)
	assert.True(t, status.Active())
}

func TestDecodeReceiverStatus_IdleScreen(t *testing.T) {
	payload := []byte(`{"type":"RECEIVER_STATUS","status":{"applications":[
		{"appId":"E8C28D3C","displayName":"Backdrop","isIdleScreen":true,"sessionId":"x"}
	]}}`)

	status, err := decodeReceiverStatus(payload)
	require.NoError(t, err)
	assert.False(t, status.Active())
}

func TestDecodeReceiverStatus_NoApplications(t *testing.T) {
	status, err := decodeReceiverStatus([]byte(`{"type":"RECEIVER_STATUS","status":{}}`))
	require.NoError(t, err)
	assert.False(t, status.Active())
}

func TestMediaTracker(t *testing.T) {
	var tr mediaTracker

	status, err := tr.apply([]byte(`{"type":"MEDIA_STATUS","status":[{"mediaSessionId":1,"playerState":"PLAYING",
		"media":{"contentId":"sDI2admB0eQ","contentType":"x-youtube/video","metadata":{"metadataType":0,
		"title":"Mechanical","subtitle":"TheCGBros","images":[{"url":"https://i.ytimg.com/vi/sDI2admB0eQ/hqdefault.jpg"}]}}}]}`))
	require.NoError(t, err)
	assert.Equal(t, MediaStatus{
		PlayerState: PlayerStatePlaying,
		Title:       "Mechanical",
		Artist:      "TheCGBros",
		ContentType: "x-youtube/video",
		ArtworkURL:  "https://i.ytimg.com/vi/sDI2admB0eQ/hqdefault.jpg",
	}, status)

	// state-only update keeps metadata
	status, err = tr.apply([]byte(`{"type":"MEDIA_STATUS","status":[{"mediaSessionId":1,"playerState":"PAUSED"}]}`))
	require.NoError(t, err)
	assert.Equal(t, PlayerStatePaused, status.PlayerState)
	assert.Equal(t, "Mechanical", status.Title)

	status, err = tr.apply([]byte(`{"type":"MEDIA_STATUS","status":[]}`))
	require.NoError(t, err)
	assert.Equal(t, MediaStatus{PlayerState: PlayerStateIdle}, status)
}

func TestMediaTracker_ArtistPreferredOverSubtitle(t *testing.T) {
	var tr mediaTracker

	status, err := tr.apply([]byte(`{"type":"MEDIA_STATUS","status":[{"playerState":"BUFFERING",
		"media":{"contentType":"audio/mpeg","metadata":{"metadataType":3,"title":"Song","artist":"Band","subtitle":"ignored","albumName":"LP"}}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Band", status.Artist)
	assert.Equal(t, "LP", status.Album)
	assert.Equal(t, PlayerStateBuffering, status.PlayerState)
	assert.Empty(t, status.ArtworkURL)
}

func TestParsePlayerState(t *testing.T) {
	assert.Equal(t, PlayerStatePlaying, ParsePlayerState("playing"))
	assert.Equal(t, PlayerStateIdle, ParsePlayerState("IDLE"))
	assert.Equal(t, PlayerStateUnknown, ParsePlayerState("SEEKING"))
	assert.Equal(t, "UNKNOWN", PlayerStateUnknown.String())
}

func TestParseEnvelope_Invalid(t *testing.T) {
	assert.Equal(t, envelope{}, parseEnvelope([]byte("not json")))
}
