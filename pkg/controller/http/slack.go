package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/utils/async"
	"github.com/secmon-lab/contribview/pkg/utils/errutil"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
	"github.com/slack-go/slack/slackevents"
)

const (
	slackTimestampHeader = "X-Slack-Request-Timestamp"
	slackSignatureHeader = "X-Slack-Signature"
	slackMaxClockSkew    = 5 * time.Minute
	slackMaxBodySize     = 1 << 20
)

// slackEventResourceTypes maps Events API event types to the resource type they invalidate
var slackEventResourceTypes = map[string]types.ResourceType{
	"channel_created":   types.ResourceTypeChannel,
	"channel_deleted":   types.ResourceTypeChannel,
	"channel_rename":    types.ResourceTypeChannel,
	"channel_archive":   types.ResourceTypeChannel,
	"channel_unarchive": types.ResourceTypeChannel,
	"team_join":         types.ResourceTypeUser,
	"user_change":       types.ResourceTypeUser,
}

// verifySlackSignature checks the v0 HMAC-SHA256 signature of a Slack request
func verifySlackSignature(signingSecret string, header http.Header, body []byte, now time.Time) error {
	timestamp := header.Get(slackTimestampHeader)
	signature := header.Get(slackSignatureHeader)
	if timestamp == "" || signature == "" {
		return goerr.New("missing Slack signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp", goerr.V("timestamp", timestamp))
	}
	if skew := now.Sub(time.Unix(ts, 0)); skew > slackMaxClockSkew || skew < -slackMaxClockSkew {
		return goerr.New("timestamp out of range", goerr.V("timestamp", timestamp), goerr.V("now", now.Unix()))
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return goerr.New("signature mismatch")
	}
	return nil
}

// slackSignatureMiddleware rejects requests that were not signed with signingSecret.
// The verified body is restored for the next handler.
func slackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, slackMaxBodySize))
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}

			if err := verifySlackSignature(signingSecret, r.Header, body, time.Now()); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// handleSlackEvent answers URL verification and resyncs resources touched by workspace events
func (s *Server) handleSlackEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge.Challenge)); err != nil {
			logging.From(ctx).Error("failed to write challenge response", "error", err)
		}

	case slackevents.CallbackEvent:
		// Slack retries unless it gets a response within 3 seconds
		w.WriteHeader(http.StatusOK)

		resourceType, ok := slackEventResourceTypes[event.InnerEvent.Type]
		if !ok {
			logging.From(ctx).Debug("ignoring slack event", "type", event.InnerEvent.Type)
			return
		}

		workspace := event.TeamID
		async.Dispatch(ctx, func(ctx context.Context) error {
			started, err := s.integration.ResyncWorkspace(ctx, workspace, resourceType)
			if err != nil {
				return goerr.Wrap(err, "failed to resync workspace",
					goerr.V("workspace", workspace), goerr.V("event", event.InnerEvent.Type))
			}
			logging.From(ctx).Info("Resync triggered by slack event",
				"workspace", workspace,
				"event", event.InnerEvent.Type,
				"integrations", started)
			return nil
		})

	default:
		logging.From(ctx).Warn("unknown slack event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}
