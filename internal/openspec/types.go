// Package openspec handles the living specification workspace: change
// proposals moving through an explicit approval lifecycle, and the
// specification documents those changes produce.
//
// Everything is persisted as YAML under a workspace root whose directory
// layout mirrors lifecycle state — a change's file lives in the
// partition named after its current status, so the directory tree is
// browsable as a review queue.
package openspec

import (
	"fmt"
	"time"
)

// timeNow is stubbed in tests to freeze identifier generation.
var timeNow = time.Now

// --- Change status enum ---

// ChangeStatus tracks a change proposal through its approval lifecycle.
type ChangeStatus string

const (
	StatusProposed    ChangeStatus = "proposed"
	StatusApproved    ChangeStatus = "approved"
	StatusRejected    ChangeStatus = "rejected"
	StatusImplemented ChangeStatus = "implemented"
)

// --- Spec type enum ---

// SpecType categorizes a specification document.
type SpecType string

const (
	SpecSystem   SpecType = "system"
	SpecAgent    SpecType = "agent"
	SpecWorkflow SpecType = "workflow"
	SpecFeature  SpecType = "feature"
	SpecChange   SpecType = "change"
)

var validSpecTypes = map[SpecType]bool{
	SpecSystem:   true,
	SpecAgent:    true,
	SpecWorkflow: true,
	SpecFeature:  true,
	SpecChange:   true,
}

// ValidateSpecType returns an error if the spec type is not recognized.
func ValidateSpecType(t SpecType) error {
	if !validSpecTypes[t] {
		return fmt.Errorf("invalid spec type %q: must be one of: system, agent, workflow, feature, change", t)
	}
	return nil
}

// --- Priority enum ---

// Priority ranks a change proposal's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var validPriorities = map[Priority]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

// ValidatePriority returns an error if the priority is not recognized.
func ValidatePriority(p Priority) error {
	if !validPriorities[p] {
		return fmt.Errorf("invalid priority %q: must be one of: low, medium, high, critical", p)
	}
	return nil
}

// --- Core data structures ---

// ChangeProposal is a proposed modification to the specification,
// persisted as <id>.yaml inside its status partition.
type ChangeProposal struct {
	ID           string       `yaml:"id" json:"id"`
	Title        string       `yaml:"title" json:"title"`
	Description  string       `yaml:"description" json:"description"`
	Rationale    string       `yaml:"rationale" json:"rationale"`
	Author       string       `yaml:"author" json:"author"`
	Status       ChangeStatus `yaml:"status" json:"status"`
	Priority     Priority     `yaml:"priority" json:"priority"`
	ImpactAreas  []string     `yaml:"impact_areas,omitempty" json:"impact_areas,omitempty"`
	Dependencies []string     `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Content carries free-form lifecycle annotations, e.g. the
	// "rejection_reason" recorded when a proposal is rejected.
	Content map[string]string `yaml:"content,omitempty" json:"content,omitempty"`

	// Review audit trail: who approved or rejected the change, who
	// implemented it, and when. Empty until the matching transition.
	ReviewedBy    string `yaml:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt    string `yaml:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	ImplementedBy string `yaml:"implemented_by,omitempty" json:"implemented_by,omitempty"`
	ImplementedAt string `yaml:"implemented_at,omitempty" json:"implemented_at,omitempty"`

	CreatedAt string `yaml:"created_at" json:"created_at"`
	UpdatedAt string `yaml:"updated_at" json:"updated_at"`
}

// Document is a specification document, persisted as <id>.yaml under
// specs/<type>/.
type Document struct {
	ID        string            `yaml:"id" json:"id"`
	Type      SpecType          `yaml:"type" json:"type"`
	Title     string            `yaml:"title" json:"title"`
	Content   map[string]string `yaml:"content" json:"content"`
	Version   string            `yaml:"version" json:"version"`
	Author    string            `yaml:"author" json:"author"`
	Tags      []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Changes   []string          `yaml:"changes,omitempty" json:"changes,omitempty"`
	CreatedAt string            `yaml:"created_at" json:"created_at"`
	UpdatedAt string            `yaml:"updated_at" json:"updated_at"`
}

// --- Identifier generation ---

// NewChangeID returns a timestamp-derived change identifier, e.g.
// "change_20260830_142501". Collisions are resolved by the store.
func NewChangeID() string {
	return "change_" + timeNow().UTC().Format("20060102_150405")
}

// NewDocumentID returns a timestamp-derived document identifier for the
// given spec type, e.g. "feature_20260830_142501".
func NewDocumentID(t SpecType) string {
	return string(t) + "_" + timeNow().UTC().Format("20060102_150405")
}
