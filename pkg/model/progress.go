package model

// Progress stream message types.
const (
	ProgressMessageUpdate = "progress"
	ProgressMessageDone   = "done"
	ProgressMessageError  = "error"
)

// ProgressMessage is one frame of the server-sent progress stream.
type ProgressMessage struct {
	Type    string `json:"type"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`
}

// Estimate converts an update frame into a ProgressEstimate clamped to
// 0 <= current <= total.
func (m ProgressMessage) Estimate() ProgressEstimate {
	total := m.Total
	if total < 0 {
		total = 0
	}
	current := m.Current
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	return ProgressEstimate{Current: current, Total: total}
}
