package predictor

import "errors"

// ErrUnavailable marks a prediction service transport failure, timeout or
// non-200 response. Callers treat it as transient.
var ErrUnavailable = errors.New("prediction service unavailable")
