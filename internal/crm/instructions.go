// Package crm builds and delivers the write-back performed against the
// upstream CRM after a lead is routed. Delivery is asynchronous and
// best-effort: instruction sets are persisted to the outbox and pushed by
// the worker, never inline with the routing call.
package crm

import (
	"strings"

	"github.com/google/uuid"
)

// Custom field keys written onto the CRM contact.
const (
	FieldLocationID   = "routed_location_id"
	FieldLocationName = "routed_location_name"
	FieldReasonCode   = "routing_reason"
	FieldDistance     = "routing_distance_miles"
)

// InstructionSet is everything the worker needs to sync one routed lead
// back to the CRM. It is stored as the outbox payload, so all fields must
// round-trip through JSON.
type InstructionSet struct {
	ExternalContactID string            `json:"externalContactId"`
	LocationID        uuid.UUID         `json:"locationId"`
	Fields            map[string]string `json:"fields,omitempty"`
	PipelineID        *string           `json:"pipelineId,omitempty"`
	StageID           *string           `json:"stageId,omitempty"`
	AutomationID      *string           `json:"automationId,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
}

// Target is the location detail the builder needs; it mirrors the CRM
// reference columns on the locations table.
type Target struct {
	LocationID   uuid.UUID
	LocationName string
	PipelineID   *string
	StageID      *string
	AutomationID *string
}

// Build assembles the instruction set for one routed contact: contact
// custom fields, the pipeline move, the location's welcome automation,
// and identifying tags.
func Build(externalContactID string, target Target, reason string, distanceMiles string) InstructionSet {
	set := InstructionSet{
		ExternalContactID: externalContactID,
		LocationID:        target.LocationID,
		Fields: map[string]string{
			FieldLocationID:   target.LocationID.String(),
			FieldLocationName: target.LocationName,
			FieldReasonCode:   reason,
			FieldDistance:     distanceMiles,
		},
		PipelineID:   target.PipelineID,
		StageID:      target.StageID,
		AutomationID: target.AutomationID,
		Tags:         []string{LocationTag(target.LocationName), "lead-router"},
	}
	return set
}

// LocationTag turns a display name into a CRM-safe tag: lowercased, spaces
// collapsed to single dashes, everything outside [a-z0-9-] dropped.
func LocationTag(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
