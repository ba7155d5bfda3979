package reconcile

import "github.com/dmaltsev/takeout-sync/internal/store"

// Outcome classifies what one reconciled video did this run.
type Outcome int

const (
	// OutcomeUpdated means an active video got fresh metadata.
	OutcomeUpdated Outcome = iota
	// OutcomeNewlyActive means the API returned a video not previously
	// known to be active.
	OutcomeNewlyActive
	// OutcomeNewlyInactive means an active video vanished from the API.
	OutcomeNewlyInactive
	// OutcomeStillInactive means a vanished video stayed vanished.
	OutcomeStillInactive
	// OutcomeFailed means the video's batch could not be fetched.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeNewlyActive:
		return "newly_active"
	case OutcomeNewlyInactive:
		return "newly_inactive"
	case OutcomeStillInactive:
		return "still_inactive"
	case OutcomeFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Classify decides the outcome from a video's stored status and
// whether the API returned it. Unknown and inactive are treated alike:
// either way the video was not known to be active.
func Classify(prev string, found bool) Outcome {
	active := prev == store.StatusActive

	switch {
	case found && active:
		return OutcomeUpdated
	case found:
		return OutcomeNewlyActive
	case active:
		return OutcomeNewlyInactive
	default:
		return OutcomeStillInactive
	}
}
