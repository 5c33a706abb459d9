package review

// Kind discriminates the outcome of a review attempt.
type Kind int

const (
	// KindOK carries the model's rendered review text.
	KindOK Kind = iota
	// KindUnavailable means no analysis credential is configured. This is
	// a normal mode of operation, not an error.
	KindUnavailable
	// KindFailed means the call was attempted and did not produce a
	// completion; Reason describes why.
	KindFailed
)

// Result is the outcome of one review attempt. Callers must treat the
// rendered text opaquely: malformed model output is displayed as-is.
type Result struct {
	Kind   Kind
	Review string
	Reason string
}

func OK(text string) Result       { return Result{Kind: KindOK, Review: text} }
func Unavailable() Result         { return Result{Kind: KindUnavailable} }
func Failed(reason string) Result { return Result{Kind: KindFailed, Reason: reason} }

// Text renders the result for display. Every kind degrades to a string so
// callers never branch on availability.
func (r Result) Text() string {
	switch r.Kind {
	case KindOK:
		return r.Review
	case KindUnavailable:
		return "AI review unavailable: no analysis credential configured"
	default:
		return "AI review failed: " + r.Reason
	}
}
