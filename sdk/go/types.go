package bandsweep

import "github.com/fslongjin/bandsweep/pkg/model"

// Auth types
type Credential = model.Credential
type TokenRequest = model.TokenRequest

// Band types
type Band = model.Band
type BandListResponse = model.BandListResponse

// Deletion types
type DeleteScope = model.DeleteScope
type ScopeKind = model.ScopeKind
type DeleteOutcome = model.DeleteOutcome
type FailedItem = model.FailedItem
type ProgressEstimate = model.ProgressEstimate
type ProgressMessage = model.ProgressMessage
type Envelope = model.Envelope

// Constants
const (
	ScopeAllComments     = model.ScopeAllComments
	ScopeKeywordComments = model.ScopeKeywordComments
	ScopeAllPosts        = model.ScopeAllPosts
)
