package service

import "errors"

// ErrRubricNotFound indicates the rubric does not exist or is not owned by the
// caller; the two cases are indistinguishable to avoid existence disclosure.
var ErrRubricNotFound = errors.New("rubric not found")

// ErrSubmissionNotFound indicates the submission does not exist or is not owned by the caller.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrProfileNotFound indicates the focus profile does not exist or is not owned by the caller.
var ErrProfileNotFound = errors.New("focus profile not found")

// ErrResultNotFound indicates no grading result exists for the submission.
var ErrResultNotFound = errors.New("result not found")

// ErrRateLimited indicates the caller exceeded the per-endpoint request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrFileNotFound indicates the stored document backing the entity is missing.
var ErrFileNotFound = errors.New("file not found in storage")

// ErrFileTooLarge indicates the stored document exceeds the processing size cap.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

// ErrSelectionNotInRubric indicates a focus profile selected criterion ids
// that the rubric does not contain.
var ErrSelectionNotInRubric = errors.New("selected criteria are not part of the rubric")

// ErrGradingInProgress indicates a retry or grade request raced an in-flight attempt.
var ErrGradingInProgress = errors.New("grading already in progress")
