package app

import (
	"fmt"
	"html"
	"strings"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/execution"
)

// Poll cadence contract served to clients alongside every state
// payload. Values are milliseconds.
const (
	PollIntervalPendingMS = 1200
	PollIntervalIdleMS    = 4500
	PollIntervalFailureMS = 6000
)

// PollPayload is the state polling response. Clients re-render only
// when progress_version or assessment_pending changed, and redirect to
// the terminal view once final_score meets win_threshold while not
// pending.
type PollPayload struct {
	StateHTML         string  `json:"state_html"`
	ProgressVersion   int64   `json:"progress_version"`
	AssessmentPending bool    `json:"assessment_pending"`
	FinalScore        float64 `json:"final_score"`
	WinThreshold      int     `json:"win_threshold"`
	TimeStatus        string  `json:"time_status"`
	State             string  `json:"state"`
	Round             int     `json:"round"`
	PollPendingMS     int     `json:"poll_pending_ms"`
	PollIdleMS        int     `json:"poll_idle_ms"`
	PollFailureMS     int     `json:"poll_failure_ms"`
}

func pollPayload(snap execution.Snapshot) PollPayload {
	return PollPayload{
		StateHTML:         renderStateHTML(snap),
		ProgressVersion:   snap.Version,
		AssessmentPending: snap.Pending,
		FinalScore:        snap.FinalScore,
		WinThreshold:      snap.WinThreshold,
		TimeStatus:        timeStatus(snap),
		State:             string(snap.State),
		Round:             snap.Round,
		PollPendingMS:     PollIntervalPendingMS,
		PollIdleMS:        PollIntervalIdleMS,
		PollFailureMS:     PollIntervalFailureMS,
	}
}

// renderStateHTML produces the opaque transcript fragment carried in
// the polling payload. The rendering layer proper lives outside the
// core; this is the minimal fragment the contract requires.
func renderStateHTML(snap execution.Snapshot) string {
	var b strings.Builder
	b.WriteString(`<ul class="transcript">`)
	for _, line := range snap.History {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func timeStatus(snap execution.Snapshot) string {
	return fmt.Sprintf("%.1f years elapsed, round %d of %d",
		snap.ElapsedYears, snap.Round, snap.MaxRounds)
}
