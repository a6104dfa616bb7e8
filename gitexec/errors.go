package gitexec

import "errors"

// ErrBackendUnavailable is returned when the git executable cannot run or
// the repository's object store cannot be read.
var ErrBackendUnavailable = errors.New("gitexec: backend unavailable")

// ErrRefResolutionFailed is returned when a revision argument names a ref
// the backend rejects as unresolvable in a context where one was required.
var ErrRefResolutionFailed = errors.New("gitexec: ref resolution failed")
