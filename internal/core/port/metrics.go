package port

// MetricsRecorder receives authentication outcome counters from the
// usecases. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	LoginAttempt(outcome string)
	OTPIssued(purpose string)
	OTPVerification(purpose, outcome string)
}
