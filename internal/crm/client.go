package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Client delivers instruction sets to the CRM HTTP API. Each step is
// idempotent on the CRM side (field writes, pipeline moves, tag adds), so
// the outbox dispatcher can safely retry a partially delivered set.
type Client struct {
	cfg    config.CRMConfig
	tokens *TokenSource
	http   *http.Client
	log    *logger.Logger
}

// NewClient creates a CRM client sharing the given token source.
func NewClient(cfg config.CRMConfig, tokens *TokenSource, log *logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: cfg.GetCRMTimeout()},
		log:    log,
	}
}

// Deliver applies one instruction set: contact fields, pipeline move,
// automation trigger, tags. The first failing step aborts and returns the
// error so the caller can retry the whole set later.
func (c *Client) Deliver(ctx context.Context, set InstructionSet) error {
	if !c.cfg.IsCRMEnabled() {
		c.log.Debug("crm disabled, skipping delivery", "contact_id", set.ExternalContactID)
		return nil
	}

	token, err := c.tokens.Token(ctx, set.LocationID)
	if err != nil {
		return fmt.Errorf("resolve location token: %w", err)
	}

	if len(set.Fields) > 0 {
		if err := c.do(ctx, token, set.LocationID, http.MethodPatch,
			"/contacts/"+set.ExternalContactID,
			map[string]any{"customFields": set.Fields}); err != nil {
			return fmt.Errorf("update contact fields: %w", err)
		}
	}

	if set.PipelineID != nil && set.StageID != nil {
		if err := c.do(ctx, token, set.LocationID, http.MethodPost,
			"/contacts/"+set.ExternalContactID+"/pipeline",
			map[string]any{"pipelineId": *set.PipelineID, "stageId": *set.StageID}); err != nil {
			return fmt.Errorf("move to pipeline: %w", err)
		}
	}

	if set.AutomationID != nil {
		if err := c.do(ctx, token, set.LocationID, http.MethodPost,
			"/automations/"+*set.AutomationID+"/trigger",
			map[string]any{"contactId": set.ExternalContactID}); err != nil {
			return fmt.Errorf("trigger automation: %w", err)
		}
	}

	if len(set.Tags) > 0 {
		if err := c.do(ctx, token, set.LocationID, http.MethodPost,
			"/contacts/"+set.ExternalContactID+"/tags",
			map[string]any{"tags": set.Tags}); err != nil {
			return fmt.Errorf("add tags: %w", err)
		}
	}

	return nil
}

func (c *Client) do(ctx context.Context, token string, locationID uuid.UUID, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.GetCRMBaseURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked upstream; drop it so the retry
		// exchanges a fresh one.
		c.tokens.Invalidate(locationID)
		return fmt.Errorf("%s %s: unauthorized", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return nil
}
