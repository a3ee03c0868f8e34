package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"trackverse/internal/auth"
	dbpkg "trackverse/internal/db"
	"trackverse/internal/webhook"
)

// writeScopeFor maps an event to the scope required to emit it.
func writeScopeFor(event string) string {
	switch event {
	case webhook.EventWorkoutCreated, webhook.EventWorkoutUpdated:
		return auth.PermWriteWorkouts
	default:
		return auth.PermWriteResults
	}
}

// IngestEvent accepts a domain event from the main app and fans it out
// to every active, subscribed webhook. The response is 202 with the
// queued delivery ids; delivery itself is fire-and-forget.
func IngestEvent(db *gorm.DB, dispatcher *webhook.Dispatcher) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKey, ok := MustAPIKey(ctx)
		if !ok {
			return
		}

		event, _ := ctx.UserValue("type").(string)
		if !webhook.IsValidEvent(event) {
			writeError(ctx, fasthttp.StatusBadRequest, "unknown event type")
			return
		}
		if !auth.HasPermission(apiKey.Permissions, writeScopeFor(event)) {
			writeError(ctx, fasthttp.StatusForbidden, "missing permission: "+writeScopeFor(event))
			return
		}

		payload, err := buildPayload(event, ctx.PostBody())
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}

		var webhooks []dbpkg.Webhook
		if err := db.Where("status = ?", dbpkg.WebhookStatusActive).Find(&webhooks).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		queued := dispatcher.Trigger(webhooks, event, payload)
		ids := make([]string, 0, len(queued))
		for _, d := range queued {
			ids = append(ids, d.ID)
		}

		writeJSON(ctx, fasthttp.StatusAccepted, map[string]interface{}{
			"event":       event,
			"queued":      len(queued),
			"deliveryIds": ids,
		})
	}
}

// buildPayload decodes the request body into the typed event struct
// and runs it through the matching payload builder.
func buildPayload(event string, body []byte) (datatypes.JSONMap, error) {
	switch event {
	case webhook.EventWorkoutCreated:
		var w webhook.Workout
		if err := decodeEvent(body, &w); err != nil {
			return nil, err
		}
		return webhook.BuildWorkoutCreatedPayload(w), nil
	case webhook.EventWorkoutUpdated:
		var w webhook.Workout
		if err := decodeEvent(body, &w); err != nil {
			return nil, err
		}
		return webhook.BuildWorkoutUpdatedPayload(w), nil
	case webhook.EventPRSet:
		var p webhook.PRSet
		if err := decodeEvent(body, &p); err != nil {
			return nil, err
		}
		return webhook.BuildPRSetPayload(p), nil
	case webhook.EventResultAdded:
		var r webhook.ResultAdded
		if err := decodeEvent(body, &r); err != nil {
			return nil, err
		}
		return webhook.BuildResultAddedPayload(r), nil
	case webhook.EventRankingChanged:
		var r webhook.RankingChanged
		if err := decodeEvent(body, &r); err != nil {
			return nil, err
		}
		return webhook.BuildRankingChangedPayload(r), nil
	}
	return nil, errors.New("unknown event type")
}

func decodeEvent(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
