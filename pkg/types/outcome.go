package types

// Outcome is the classified result of a single HTTP attempt. The categories
// are mutually exclusive; classification order is fixed by the engine.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeIntermittentError Outcome = "intermittent_error"
	OutcomeSlow              Outcome = "slow"
	OutcomeServerError       Outcome = "server_error"
	OutcomeTransportFailure  Outcome = "transport_failure"
)

// Retryable reports whether the engine may issue another attempt after
// observing this outcome. Server errors terminate the call immediately.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeIntermittentError, OutcomeSlow, OutcomeTransportFailure:
		return true
	default:
		return false
	}
}

// ServerResponse is the decoded body of a 200 response from the target
// endpoint. Delayed responses carry delay_seconds instead of response_time_ms.
type ServerResponse struct {
	Scenario           string  `json:"scenario" yaml:"scenario"`
	Message            string  `json:"message" yaml:"message"`
	ResponseTimeMillis float64 `json:"response_time_ms,omitempty" yaml:"response_time_ms,omitempty"`
	DelaySeconds       int     `json:"delay_seconds,omitempty" yaml:"delay_seconds,omitempty"`
}
