package docai

import "errors"

// FailureKind classifies a backend error by whether another attempt can
// help. The mapping is a pure function of the error type so it can be
// exercised without any network calls.
type FailureKind int

const (
	// FailureRetryable: a transient or size problem; the large-document
	// endpoint may succeed where the default one failed
	FailureRetryable FailureKind = iota
	// FailureFatal: a credential or service problem; no endpoint will
	// fare better, so the document fails immediately
	FailureFatal
	// FailureUnknown: unclassified; treated as fatal, fail safe
	FailureUnknown
)

func (k FailureKind) String() string {
	switch k {
	case FailureRetryable:
		return "retryable"
	case FailureFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps a backend error to a failure kind.
//
//   - transport-level failures (ServiceRequestError) are almost always
//     credentials or connectivity: fatal
//   - authentication rejections (401/403) are fatal even though the
//     service responded
//   - every other response error (5xx, 413, malformed body) is the
//     size/transient class worth one escalation
//   - anything unrecognized is unknown and handled as fatal
func Classify(err error) FailureKind {
	var svcErr *ServiceRequestError
	if errors.As(err, &svcErr) {
		return FailureFatal
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 401, 403:
			return FailureFatal
		default:
			return FailureRetryable
		}
	}

	return FailureUnknown
}
