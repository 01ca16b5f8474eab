package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidCandidateList  = errors.New("invalid candidate list")
	ErrUpstreamUnavailable   = errors.New("stat feeds unavailable")
	ErrAuthExpired           = errors.New("auth expired, refresh token must be re-provisioned")
	ErrSubmissionRejected    = errors.New("submission rejected")
	ErrDuplicateSubmission   = errors.New("duplicate submission for date")
	ErrNoContest             = errors.New("no contest today")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
