package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "trackverse/internal/db"
	"trackverse/internal/webhook"
)

type webhookResponse struct {
	ID               string     `json:"id"`
	URL              string     `json:"url"`
	Events           []string   `json:"events"`
	Status           string     `json:"status"`
	FailureCount     int        `json:"failureCount"`
	LastTriggeredAt  *time.Time `json:"lastTriggeredAt,omitempty"`
	LastResponseCode *int       `json:"lastResponseCode,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	// Secret is only populated in the creation response.
	Secret string `json:"secret,omitempty"`
}

func toWebhookResponse(w *dbpkg.Webhook, includeSecret bool) webhookResponse {
	resp := webhookResponse{
		ID:               w.ID,
		URL:              w.URL,
		Events:           w.Events,
		Status:           w.Status,
		FailureCount:     w.FailureCount,
		LastTriggeredAt:  w.LastTriggeredAt,
		LastResponseCode: w.LastResponseCode,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
	if includeSecret {
		resp.Secret = w.Secret
	}
	return resp
}

type createWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// CreateWebhook registers a subscriber URL. The signing secret is
// generated server-side and returned in this response only.
func CreateWebhook(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKey, ok := MustAPIKey(ctx)
		if !ok {
			return
		}

		var req createWebhookRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			writeError(ctx, fasthttp.StatusBadRequest, "url must be an http(s) URL")
			return
		}
		if len(req.Events) == 0 {
			writeError(ctx, fasthttp.StatusBadRequest, "at least one event required")
			return
		}
		if ok, invalid := webhook.ValidateEvents(req.Events); !ok {
			writeJSON(ctx, fasthttp.StatusBadRequest, map[string]interface{}{
				"error":         "invalid events",
				"invalidEvents": invalid,
			})
			return
		}

		secret, err := webhook.GenerateSecret()
		if err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to generate webhook secret")
			return
		}

		wh := &dbpkg.Webhook{
			ID:     uuid.NewString(),
			UserID: apiKey.UserID,
			URL:    req.URL,
			Events: req.Events,
			Secret: secret,
			Status: dbpkg.WebhookStatusActive,
		}
		if err := db.Create(wh).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to create webhook")
			return
		}

		writeJSON(ctx, fasthttp.StatusCreated, toWebhookResponse(wh, true))
	}
}

// ListWebhooks returns the caller's webhooks, newest first.
func ListWebhooks(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKey, ok := MustAPIKey(ctx)
		if !ok {
			return
		}

		var webhooks []dbpkg.Webhook
		if err := db.Where("user_id = ?", apiKey.UserID).Order("created_at DESC").Find(&webhooks).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		resp := make([]webhookResponse, 0, len(webhooks))
		for i := range webhooks {
			resp = append(resp, toWebhookResponse(&webhooks[i], false))
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"webhooks": resp})
	}
}

// GetWebhook returns one webhook owned by the caller.
func GetWebhook(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		wh, ok := mustOwnWebhook(ctx, db)
		if !ok {
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, toWebhookResponse(wh, false))
	}
}

type updateWebhookRequest struct {
	URL    *string   `json:"url"`
	Events *[]string `json:"events"`
	Status *string   `json:"status"`
}

// UpdateWebhook patches url, events, or status. Setting status to
// active on a failed webhook re-enables it and resets the failure
// count; "failed" itself can only be entered by the delivery pipeline.
func UpdateWebhook(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		wh, ok := mustOwnWebhook(ctx, db)
		if !ok {
			return
		}

		var req updateWebhookRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		updates := map[string]interface{}{}
		if req.URL != nil {
			if !strings.HasPrefix(*req.URL, "http://") && !strings.HasPrefix(*req.URL, "https://") {
				writeError(ctx, fasthttp.StatusBadRequest, "url must be an http(s) URL")
				return
			}
			updates["url"] = *req.URL
		}
		if req.Events != nil {
			if len(*req.Events) == 0 {
				writeError(ctx, fasthttp.StatusBadRequest, "at least one event required")
				return
			}
			if ok, invalid := webhook.ValidateEvents(*req.Events); !ok {
				writeJSON(ctx, fasthttp.StatusBadRequest, map[string]interface{}{
					"error":         "invalid events",
					"invalidEvents": invalid,
				})
				return
			}
			updates["events"] = datatypes.JSONSlice[string](*req.Events)
		}
		if req.Status != nil {
			if *req.Status != dbpkg.WebhookStatusActive && *req.Status != dbpkg.WebhookStatusPaused {
				writeError(ctx, fasthttp.StatusBadRequest, "status must be active or paused")
				return
			}
			updates["status"] = *req.Status
			if *req.Status == dbpkg.WebhookStatusActive {
				updates["failure_count"] = 0
			}
		}
		if len(updates) == 0 {
			writeError(ctx, fasthttp.StatusBadRequest, "nothing to update")
			return
		}

		if err := db.Model(wh).Updates(updates).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to update webhook")
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, toWebhookResponse(wh, false))
	}
}

// DeleteWebhook removes a webhook and its delivery history.
func DeleteWebhook(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		wh, ok := mustOwnWebhook(ctx, db)
		if !ok {
			return
		}

		if err := db.Where("webhook_id = ?", wh.ID).Delete(&dbpkg.WebhookDelivery{}).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to delete deliveries")
			return
		}
		if err := db.Delete(wh).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to delete webhook")
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

// TestWebhook fires a synthetic test event at the subscriber URL,
// outside the delivery pipeline.
func TestWebhook(db *gorm.DB, dispatcher *webhook.Dispatcher) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		wh, ok := mustOwnWebhook(ctx, db)
		if !ok {
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, dispatcher.Test(wh))
	}
}

// mustOwnWebhook loads the webhook from the {id} path segment and
// verifies the caller owns it. Sends the error response itself.
func mustOwnWebhook(ctx *fasthttp.RequestCtx, db *gorm.DB) (*dbpkg.Webhook, bool) {
	apiKey, ok := MustAPIKey(ctx)
	if !ok {
		return nil, false
	}

	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "id required")
		return nil, false
	}

	var wh dbpkg.Webhook
	if err := db.First(&wh, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			writeError(ctx, fasthttp.StatusNotFound, "webhook not found")
			return nil, false
		}
		writeError(ctx, fasthttp.StatusInternalServerError, "database error")
		return nil, false
	}
	if wh.UserID != apiKey.UserID {
		writeError(ctx, fasthttp.StatusForbidden, "forbidden")
		return nil, false
	}
	return &wh, true
}
