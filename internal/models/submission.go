package models

import (
	"time"

	"github.com/google/uuid"
)

// Submission represents an uploaded student paper awaiting or carrying a grade.
type Submission struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	AssignmentID *uuid.UUID `gorm:"type:uuid" json:"assignment_id"`
	StudentName  string     `gorm:"size:255" json:"student_name"`
	FilePath     string     `gorm:"size:512;not null" json:"file_path"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const (
	// SubmissionStatusPending indicates the submission is uploaded and waiting for grading.
	SubmissionStatusPending = "pending"
	// SubmissionStatusProcessing indicates a grading attempt is in flight.
	SubmissionStatusProcessing = "processing"
	// SubmissionStatusGraded indicates grading completed and a result exists.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusError indicates the last grading attempt failed; a retry may reset to pending.
	SubmissionStatusError = "error"
)

// IsTerminal reports whether the submission reached a final state for the current attempt.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusGraded || s.Status == SubmissionStatusError
}
