package models

import (
	"time"

	"metalink/internal/linker"
)

// LinkEvent is published after each linker run
type LinkEvent struct {
	Profile         string    `json:"profile"`
	Cluster         string    `json:"cluster"`
	Mint            string    `json:"mint"`
	Wallet          string    `json:"wallet,omitempty"`
	Status          string    `json:"status"`
	Balance         uint64    `json:"balance_lamports"`
	MetadataAddress string    `json:"metadata_address,omitempty"`
	Signature       string    `json:"signature,omitempty"`
	ExplorerURL     string    `json:"explorer_url,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewLinkEvent(profile, cluster string, outcome linker.Outcome) LinkEvent {
	event := LinkEvent{
		Profile:         profile,
		Cluster:         cluster,
		Mint:            outcome.Mint,
		Wallet:          outcome.Wallet,
		Status:          string(outcome.Status),
		Balance:         outcome.Balance,
		MetadataAddress: outcome.MetadataAddress,
		Signature:       outcome.Signature,
		ExplorerURL:     outcome.ExplorerURL,
		CreatedAt:       time.Now().UTC(),
	}
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}
	return event
}
