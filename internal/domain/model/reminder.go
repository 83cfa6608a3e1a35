package model

import "time"

// Reminder reasons.
const (
	ReminderScheduled = "scheduled"
	ReminderManual    = "manual"
)

// ReminderJob asks for the reminder about Date's breakfast to be sent.
type ReminderJob struct {
	ID         string
	Date       Date
	Reason     string
	EnqueuedAt time.Time
}
