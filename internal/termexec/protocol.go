// Package termexec implements spec §4.6/§6.3: the streamed, PTY-backed
// executor and its bidirectional terminal protocol. Nothing in the
// teacher covers this surface; it is new domain code enriched entirely
// from the rest of the example pack — dagu-org-dagu's go.mod is the
// reason loom pairs github.com/creack/pty with github.com/coder/websocket
// for exactly this "stream a child's pty over a socket" job, and
// github.com/google/uuid (also in dagu's and Streamy's require blocks)
// names each session.
//
// The three operating modes reuse internal/batchexec's command
// construction and internal/orchestrator's scheduling, swapping the batch
// executor's os.Stdout/captured-buffer sink for a pty slave multiplexed
// over a websocket connection.
package termexec

import "encoding/json"

// Mode is the opening frame's requested operating mode (spec §6.3).
type Mode string

const (
	ModeStep     Mode = "step"      // independent single step
	ModeFromStep Mode = "from_step" // dependency-driven sequential, from a step
	ModeToData   Mode = "to_data"   // dependency-driven sequential, to a data node
	ModeAll      Mode = "all"       // dependency-driven sequential, whole pipeline
	ModeParallel Mode = "parallel"  // ad-hoc parallel set
)

// OpenFrame is the client's opening JSON object (spec §6.3).
type OpenFrame struct {
	Mode      Mode     `json:"mode"`
	StepName  string   `json:"step_name,omitempty"`
	StepNames []string `json:"step_names,omitempty"`
	DataName  string   `json:"data_name,omitempty"`
}

// StepRunStatus is the status carried in a step_status frame.
type StepRunStatus string

const (
	RunStatusRunning   StepRunStatus = "running"
	RunStatusCompleted StepRunStatus = "completed"
	RunStatusFailed    StepRunStatus = "failed"
	RunStatusCancelled StepRunStatus = "cancelled"
)

// StatusFrame is the structured JSON status line spec §6.3 names.
type StatusFrame struct {
	Type   string        `json:"type"`
	Step   string        `json:"step"`
	Status StepRunStatus `json:"status"`
}

func newStatusFrame(step string, status StepRunStatus) []byte {
	b, _ := json.Marshal(StatusFrame{Type: "step_status", Step: step, Status: status})
	return b
}

// Banner is one of the human-readable text frames spec §6.3 names.
type Banner string

const (
	BannerRunning   Banner = "[RUNNING]"
	BannerSuccess   Banner = "[SUCCESS]"
	BannerFailed    Banner = "[FAILED]"
	BannerCancelled Banner = "[CANCELLED]"
	BannerSkipped   Banner = "[SKIPPED]"
	BannerCompleted Banner = "[COMPLETED]"
	BannerError     Banner = "[ERROR]"
	BannerWarn      Banner = "[WARN]"
)

// CancelAll is the client->server text frame that cancels every running
// step of the session (spec §6.3).
const CancelAll = "__CANCEL__"

// cancelPrefix precedes a step name in a targeted cancel frame,
// "__CANCEL__:<step>".
const cancelPrefix = "__CANCEL__:"

// parseCancelFrame reports whether msg is a cancel frame, and which step
// it names (empty string means "cancel everything").
func parseCancelFrame(msg string) (step string, isCancel bool) {
	if msg == CancelAll {
		return "", true
	}
	if len(msg) >= len(cancelPrefix) && msg[:len(cancelPrefix)] == cancelPrefix {
		return msg[len(cancelPrefix):], true
	}
	return "", false
}

func outputTag(step string) []byte {
	return []byte("[OUTPUT:" + step + "]")
}
