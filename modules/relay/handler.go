package relay

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/zachfi/castrelay/pkg/cast"
	"github.com/zachfi/castrelay/pkg/sonos"
)

func (r *Relay) handleMediaStatus(ctx context.Context, status cast.MediaStatus) {
	r.logger.Info("media status changed",
		"previous_state", r.lastState,
		"state", status.PlayerState,
		"title", status.Title,
		"artist", status.Artist,
		"content_type", status.ContentType,
	)
	r.lastState = status.PlayerState

	if status.PlayerState != cast.PlayerStatePlaying || !status.HasText() {
		return
	}

	if r.cfg.Relay.SkipDuplicates && r.lastPushed != nil && sameMetadata(*r.lastPushed, status) {
		r.logger.Debug("metadata unchanged, skipping push")
		return
	}

	r.pushMetadata(ctx, status)
	r.lastPushed = &status
}

// pushMetadata updates every configured sink and waits for all of them.
// Failures are logged and counted only.
func (r *Relay) pushMetadata(ctx context.Context, status cast.MediaStatus) {
	var g errgroup.Group

	if r.icecast != nil {
		g.Go(func() error {
			r.updateIcecast(ctx, status)
			return nil
		})
	}

	if r.sonos != nil {
		g.Go(func() error {
			r.updateSonos(ctx, status)
			return nil
		})
	}

	_ = g.Wait()
}

func (r *Relay) updateIcecast(ctx context.Context, status cast.MediaStatus) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Relay.RequestTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "Relay.updateIcecast")
	span.SetAttributes(
		attribute.String("artist", status.Artist),
		attribute.String("title", status.Title),
	)

	code, err := r.icecast.UpdateMetadata(ctx, status.Artist, status.Title)
	r.metrics.sinkUpdates.WithLabelValues(sinkIcecast, result(err)).Inc()
	span.SetAttributes(attribute.Int("http.status_code", code))

	if err == nil {
		r.logger.Info("update to icecast server", "status", code)
	}
	_ = errHandler(span, err, "icecast update failed", r.logger)
}

func (r *Relay) updateSonos(ctx context.Context, status cast.MediaStatus) {
	r.playStream(ctx, sonos.StreamContent(status.Artist, status.Title), status.ArtworkURL)
}

// playStream points the speaker at the relay stream, forcing radio mode.
func (r *Relay) playStream(ctx context.Context, streamContent, artworkURL string) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Relay.RequestTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "Relay.playStream")

	uri := sonos.RadioURI(r.cfg.StreamURL())
	meta, err := sonos.BuildDIDL(sonos.Item{
		Title:         r.cfg.Sonos.Title,
		StreamContent: streamContent,
		ArtworkURL:    artworkURL,
		URI:           uri,
	})
	if err == nil {
		span.SetAttributes(attribute.String("uri", uri))
		err = r.sonos.PlayURI(ctx, uri, meta)
	}

	r.metrics.sinkUpdates.WithLabelValues(sinkSonos, result(err)).Inc()
	if err == nil {
		r.logger.Info("update to sonos", "uri", uri, "stream_content", streamContent)
	}
	_ = errHandler(span, err, "sonos update failed", r.logger)
}

func (r *Relay) handleCastStatus(ctx context.Context, status cast.CastStatus) {
	previous := r.previous
	r.previous = status

	r.logger.Info("cast status changed",
		"previous_app", previous.AppID,
		"previous_session", previous.SessionID,
		"app", status.AppID,
		"session", status.SessionID,
		"display_name", status.DisplayName,
	)

	if previous.Active() || !status.Active() {
		return
	}

	r.metrics.sessionStarted.Inc()
	r.sessionStarted(ctx)
}

// sessionStarted runs once per inactive to active transition.
func (r *Relay) sessionStarted(ctx context.Context) {
	if r.encoder != nil {
		ectx, cancel := context.WithTimeout(ctx, r.cfg.Relay.RequestTimeout)
		pid, launched, err := r.encoder.EnsureRunning(ectx)
		cancel()

		switch {
		case err != nil:
			r.logger.Error("failed to ensure encoder is running", "err", err)
		case launched:
			r.metrics.encoderLaunch.Inc()
			r.logger.Info("encoder started", "pid", pid)
		}
	}

	if r.sonos != nil && r.cfg.Sonos.RedirectOnSession {
		r.playStream(ctx, "", "")
	}
}

func sameMetadata(a, b cast.MediaStatus) bool {
	return a.Title == b.Title &&
		a.Artist == b.Artist &&
		a.Album == b.Album &&
		a.ArtworkURL == b.ArtworkURL
}
