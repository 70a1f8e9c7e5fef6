// Package shoutcast reads ICY/Shoutcast streams, strips the interleaved metadata
// blocks and reports StreamTitle changes.
//
// Started as a fork of github.com/romantomjak/shoutcast:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - Metadata blocks are read and skipped so only audio bytes are returned
//   - Requests carry a context and the stream itself has no read timeout
package shoutcast
