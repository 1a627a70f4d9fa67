package agent

// ExitCause is why Run returned.
type ExitCause int

const (
	// ExitShutdown covers a handled signal or a cancelled parent context.
	ExitShutdown ExitCause = iota
	// ExitSimulatedCrash is the crash loop firing on purpose.
	ExitSimulatedCrash
	// ExitFailure is anything else that stopped the harness.
	ExitFailure
)

// Code is the process exit status for c.
func (c ExitCause) Code() int {
	if c == ExitShutdown {
		return 0
	}
	return 1
}

func (c ExitCause) String() string {
	switch c {
	case ExitShutdown:
		return "shutdown"
	case ExitSimulatedCrash:
		return "simulated_crash"
	case ExitFailure:
		return "failure"
	default:
		return "unknown"
	}
}
