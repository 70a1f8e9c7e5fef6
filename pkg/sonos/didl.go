package sonos

import (
	"bytes"
	"encoding/xml"
	"strings"
	"text/template"
)

// Item is the now-playing entry rendered into a DIDL-Lite document.
type Item struct {
	// Title is the station title shown by the controller.
	Title string
	// StreamContent is the "artist - title" line of a radio stream.
	StreamContent string
	ArtworkURL    string
	// URI is the resource the renderer plays.
	URI string
}

var didlTemplate = template.Must(template.New("didl").Funcs(template.FuncMap{
	"xml": escape,
}).Parse(`<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" ` +
	`xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" ` +
	`xmlns:r="urn:schemas-rinconnetworks-com:metadata-1-0/" ` +
	`xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">` +
	`<item id="R:0/0/0" parentID="R:0/0" restricted="true">` +
	`<res protocolInfo="x-rincon-mp3radio:*:*:*">{{ xml .URI }}</res>` +
	`{{ if .StreamContent }}<r:streamContent>{{ xml .StreamContent }}</r:streamContent>{{ end }}` +
	`<r:description>My Radio Stations</r:description>` +
	`<dc:title>{{ xml .Title }}</dc:title>` +
	`<upnp:class>object.item.audioItem.audioBroadcast</upnp:class>` +
	`{{ if .ArtworkURL }}<upnp:albumArtURI>{{ xml .ArtworkURL }}</upnp:albumArtURI>{{ end }}` +
	`<desc id="cdudn" nameSpace="urn:schemas-rinconnetworks-com:metadata-1-0/">SA_RINCON65031_</desc>` +
	`</item></DIDL-Lite>`))

// BuildDIDL renders item as a DIDL-Lite document. All values are XML escaped.
func BuildDIDL(item Item) (string, error) {
	var buf bytes.Buffer
	if err := didlTemplate.Execute(&buf, item); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StreamContent joins artist and title the way Sonos shows radio metadata.
func StreamContent(artist, title string) string {
	switch {
	case artist == "":
		return title
	case title == "":
		return artist
	}
	return artist + " - " + title
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
