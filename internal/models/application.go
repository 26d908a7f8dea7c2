// internal/models/application.go
package models

import "time"

// Channel identifies the medium an application originated from.
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelMessaging Channel = "messaging"
	ChannelUSSD      Channel = "ussd"
	ChannelMobileApp Channel = "mobile-app"
)

// IsValid reports whether the channel is one of the supported media.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelWeb, ChannelMessaging, ChannelUSSD, ChannelMobileApp:
		return true
	}
	return false
}

// Step is the application's position in the workflow. The set is closed:
// anything outside it is rejected at the ingestion boundary.
type Step string

const (
	StepLanguage         Step = "language"
	StepIntent           Step = "intent"
	StepEmployer         Step = "employer"
	StepProduct          Step = "product"
	StepAccount          Step = "account"
	StepSummary          Step = "summary"
	StepForm             Step = "form"
	StepDocuments        Step = "documents"
	StepCompleted        Step = "completed"
	StepInReview         Step = "in_review"
	StepApproved         Step = "approved"
	StepRejected         Step = "rejected"
	StepPendingDocuments Step = "pending_documents"
	StepProcessing       Step = "processing"

	// Channel/product specific sub-steps.
	StepAccountType     Step = "account_type"
	StepBranchSelection Step = "branch_selection"
	StepOTPVerification Step = "otp_verification"
)

var knownSteps = map[Step]struct{}{
	StepLanguage: {}, StepIntent: {}, StepEmployer: {}, StepProduct: {},
	StepAccount: {}, StepSummary: {}, StepForm: {}, StepDocuments: {},
	StepCompleted: {}, StepInReview: {}, StepApproved: {}, StepRejected: {},
	StepPendingDocuments: {}, StepProcessing: {},
	StepAccountType: {}, StepBranchSelection: {}, StepOTPVerification: {},
}

// IsValid reports whether the step belongs to the workflow vocabulary.
func (s Step) IsValid() bool {
	_, ok := knownSteps[s]
	return ok
}

// IsGenerationReady reports whether reaching this step makes the application
// eligible for document generation.
func (s Step) IsGenerationReady() bool {
	return s == StepCompleted
}

// Priority labels for generation jobs. The queue runtime interprets them;
// assignment is the orchestrator's responsibility.
const (
	PriorityHigh    = "high"
	PriorityMedium  = "medium"
	PriorityDefault = "default"
)

// PriorityForStep labels a generation job based on the application's step.
func PriorityForStep(s Step) string {
	switch s {
	case StepCompleted:
		return PriorityHigh
	case StepInReview:
		return PriorityMedium
	default:
		return PriorityDefault
	}
}

// Application is the aggregate root for one submitted application session.
// FormData is dynamically shaped; it is validated per template family at the
// ingestion boundary, never globally.
type Application struct {
	SessionID     string                 `json:"sessionId" db:"session_id"`
	ReferenceCode string                 `json:"referenceCode,omitempty" db:"reference_code"`
	UserID        string                 `json:"userId" db:"user_id"`
	Channel       Channel                `json:"channel" db:"channel"`
	CurrentStep   Step                   `json:"currentStep" db:"current_step"`
	FormData      map[string]interface{} `json:"formData" db:"form_data"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time              `json:"updatedAt" db:"updated_at"`
	ExpiresAt     *time.Time             `json:"expiresAt,omitempty" db:"expires_at"`
}

// IsExpired reports whether the session passed its expiry, if one is set.
func (a *Application) IsExpired() bool {
	return a.ExpiresAt != nil && time.Now().After(*a.ExpiresAt)
}

// FormResponses returns the nested formResponses map, or nil.
func (a *Application) FormResponses() map[string]interface{} {
	if a.FormData == nil {
		return nil
	}
	if raw, ok := a.FormData["formResponses"]; ok {
		if m, ok := raw.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

// FormString returns a top-level form field as a string, or "".
func (a *Application) FormString(key string) string {
	if a.FormData == nil {
		return ""
	}
	if v, ok := a.FormData[key].(string); ok {
		return v
	}
	return ""
}

// Transition is one immutable audit record of an accepted step change.
// Records are append-only: never mutated, never deleted, and never written
// for rejected changes.
type Transition struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"sessionId" db:"session_id"`
	FromStep  Step                   `json:"fromStep" db:"from_step"`
	ToStep    Step                   `json:"toStep" db:"to_step"`
	Channel   Channel                `json:"channel" db:"channel"`
	Payload   map[string]interface{} `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}
