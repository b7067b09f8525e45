package session

import (
	"github.com/alanbriolat/bsky-video-dl/internal/intake"
	"github.com/alanbriolat/bsky-video-dl/internal/orchestrator"
)

type Event interface {
	// Kind names the event for clients that can't type-switch on it.
	Kind() string
}

type IntakeUpdated struct {
	OldState intake.State
	NewState intake.State
}

func (IntakeUpdated) Kind() string {
	return "intake"
}

type OrchestratorUpdated struct {
	OldState orchestrator.State
	NewState orchestrator.State
}

func (OrchestratorUpdated) Kind() string {
	return "orchestrator"
}

// URLValidated is sent after a post URL passes the existence check, with the shareable address that now points at it.
type URLValidated struct {
	URL     string
	Address string
}

func (URLValidated) Kind() string {
	return "validated"
}
