package qobuz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"github.com/vitiko98/mopidy-qobuz/plugins/qobuz/stream"
)

const fileURLEndpoint = "track/getFileUrl"

// secretProbeTrackID is a long lived catalogue track used to validate the app secret.
const secretProbeTrackID = "5966783"

// FetchFileURL performs one signed track/getFileUrl request. It implements
// stream.Fetcher and only repeats the request after a 401 followed by a
// successful re-login.
func (c *Client) FetchFileURL(ctx context.Context, trackID string, format platform.Quality, intent string) (*stream.Descriptor, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: format id %d, choose between 5, 6, 7 or 27", stream.ErrInvalidQuality, int(format))
	}
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: empty track id", stream.ErrTrackURLNotFound)
	}
	if intent == "" {
		intent = stream.DefaultIntent
	}

	issued, params := c.signedFileURLParams(trackID, format, intent)
	reply, err := c.send(ctx, http.MethodGet, fileURLEndpoint, params, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stream.ErrTrackURLNotFound, err)
	}
	// A restored token may have been revoked; the signature is tied to ts, so sign again.
	if reply.status == http.StatusUnauthorized && c.relogin(ctx) {
		issued, params = c.signedFileURLParams(trackID, format, intent)
		reply, err = c.send(ctx, http.MethodGet, fileURLEndpoint, params, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", stream.ErrTrackURLNotFound, err)
		}
	}
	if reply.status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %w", stream.ErrTrackURLNotFound, platform.NewAuthRequiredError(platformName))
	}

	if reply.status == http.StatusBadRequest && strings.Contains(replyMessage(reply.body), "Invalid Request") {
		return nil, stream.ErrInvalidCredential
	}
	if reply.status != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", stream.ErrTrackURLNotFound, errorForStatus(fileURLEndpoint, reply.status, reply.body))
	}

	var data fileURLReply
	if err := json.Unmarshal(reply.body, &data); err != nil {
		return nil, fmt.Errorf("%w: decode reply: %w", stream.ErrTrackURLNotFound, err)
	}

	demo := data.hasSample() || data.SamplingRate == nil || *data.SamplingRate == 0
	if data.URL == "" && !data.hasSample() {
		return nil, fmt.Errorf("%w: track %s has no url", stream.ErrTrackURLNotFound, trackID)
	}

	desc := &stream.Descriptor{
		TrackID:      trackID,
		URL:          data.URL,
		Format:       format,
		MimeType:     data.MimeType,
		BitDepth:     16,
		Duration:     int(data.Duration),
		Restrictions: data.restrictionCodes(),
		Demo:         demo,
		IssuedAt:     issued,
	}
	if data.BitDepth != nil {
		desc.BitDepth = *data.BitDepth
	}
	if data.SamplingRate != nil {
		desc.SamplingRate = *data.SamplingRate
	}
	desc.QualityFallback = stream.HasFallbackRestriction(desc.Restrictions)
	return desc, nil
}

func (c *Client) signedFileURLParams(trackID string, format platform.Quality, intent string) (time.Time, url.Values) {
	issued := c.now()
	ts := strconv.FormatInt(issued.Unix(), 10)
	signed := map[string]string{
		"format_id": format.FormatID(),
		"intent":    intent,
		"track_id":  trackID,
	}
	return issued, url.Values{
		"request_ts":  {ts},
		"request_sig": {requestSignature("track", "getFileUrl", signed, ts, c.secret)},
		"track_id":    {trackID},
		"format_id":   {format.FormatID()},
		"intent":      {intent},
	}
}

// CheckSecret signs a request for a known track and reports an invalid app secret.
// Other failures are logged and ignored.
func (c *Client) CheckSecret(ctx context.Context) error {
	_, err := c.FetchFileURL(ctx, secretProbeTrackID, platform.QualityMP3, stream.DefaultIntent)
	if err == nil {
		return nil
	}
	if errors.Is(err, stream.ErrInvalidCredential) {
		return fmt.Errorf("qobuz: app secret rejected: %w", err)
	}
	if c.logger != nil {
		c.logger.Warn("could not verify app secret", "error", err)
	}
	return nil
}
