package cast

import (
	"encoding/json"
	"sync"
)

const (
	typeReceiverStatus = "RECEIVER_STATUS"
	typeMediaStatus    = "MEDIA_STATUS"
)

type envelope struct {
	Type string `json:"type"`
	// RequestID is zero for broadcasts and set on replies to our requests.
	RequestID int `json:"requestId"`
}

type receiverStatusMessage struct {
	Status struct {
		Applications []struct {
			AppID        string `json:"appId"`
			DisplayName  string `json:"displayName"`
			SessionID    string `json:"sessionId"`
			TransportID  string `json:"transportId"`
			IsIdleScreen bool   `json:"isIdleScreen"`
		} `json:"applications"`
	} `json:"status"`
}

type mediaImage struct {
	URL string `json:"url"`
}

type mediaMetadata struct {
	Title     string       `json:"title"`
	Artist    string       `json:"artist"`
	Subtitle  string       `json:"subtitle"`
	AlbumName string       `json:"albumName"`
	Images    []mediaImage `json:"images"`
}

type mediaInfo struct {
	ContentType string         `json:"contentType"`
	Metadata    *mediaMetadata `json:"metadata"`
}

type mediaStatusMessage struct {
	Status []struct {
		PlayerState string     `json:"playerState"`
		Media       *mediaInfo `json:"media"`
	} `json:"status"`
}

// decodeReceiverStatus extracts the foreground application. Idle screens such
// as the backdrop do not count as a session.
func decodeReceiverStatus(payload []byte) (CastStatus, error) {
	var msg receiverStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return CastStatus{}, err
	}

	for _, app := range msg.Status.Applications {
		if app.IsIdleScreen {
			continue
		}
		return CastStatus{
			AppID:       app.AppID,
			SessionID:   app.SessionID,
			DisplayName: app.DisplayName,
			TransportID: app.TransportID,
		}, nil
	}

	return CastStatus{}, nil
}

// mediaTracker merges partial MEDIA_STATUS updates. Receivers omit the media
// block when only the player state changes, so the last known metadata is kept
// until a message says the session ended.
type mediaTracker struct {
	mu      sync.Mutex
	current MediaStatus
}

func (t *mediaTracker) apply(payload []byte) (MediaStatus, error) {
	var msg mediaStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return MediaStatus{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(msg.Status) == 0 {
		t.current = MediaStatus{PlayerState: PlayerStateIdle}
		return t.current, nil
	}

	s := msg.Status[0]
	t.current.PlayerState = ParsePlayerState(s.PlayerState)

	if s.Media != nil {
		t.current.ContentType = s.Media.ContentType
		if md := s.Media.Metadata; md != nil {
			t.current.Title = md.Title
			t.current.Artist = md.Artist
			if t.current.Artist == "" {
				t.current.Artist = md.Subtitle
			}
			t.current.Album = md.AlbumName
			t.current.ArtworkURL = ""
			if len(md.Images) > 0 {
				t.current.ArtworkURL = md.Images[0].URL
			}
		}
	}

	return t.current, nil
}

func parseEnvelope(payload []byte) envelope {
	var e envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return envelope{}
	}
	return e
}
