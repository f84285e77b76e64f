package job

import (
	"time"

	"gigmatch/profile"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

type WagePeriod string

const (
	WageHourly  WagePeriod = "hourly"
	WageDaily   WagePeriod = "daily"
	WageWeekly  WagePeriod = "weekly"
	WageMonthly WagePeriod = "monthly"
)

type Wage struct {
	Amount float64
	Period WagePeriod
}

// Job is a posting by an employer. RequiredSkills is a normalized set;
// PreferredLanguages keeps the employer's order.
type Job struct {
	ID                 string
	EmployerID         string
	Title              string
	Description        string
	RequiredSkills     []string
	Location           profile.Location
	Wage               Wage
	Duration           string
	RequiredExperience int
	PreferredLanguages []string
	StartDate          time.Time
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Application links a worker to a job. At most one exists per (worker, job).
type Application struct {
	ID            string
	JobID         string
	WorkerID      string
	Status        ApplicationStatus
	AppliedAt     time.Time
	PaymentStatus PaymentStatus
	PaymentAmount *float64
	PaymentDate   *time.Time
	History       []HistoryEntry
	RemindedAt    *time.Time
	UpdatedAt     time.Time
}

// HistoryEntry records one status change of an application.
type HistoryEntry struct {
	From  ApplicationStatus `json:"from"`
	To    ApplicationStatus `json:"to"`
	At    time.Time         `json:"at"`
	Actor string            `json:"actor"`
}

// Contacts is the denormalized view notifications need for an application.
type Contacts struct {
	JobTitle      string
	StartDate     time.Time
	WorkerName    string
	WorkerPhone   string
	EmployerName  string
	EmployerPhone string
}

// JobInput carries a posting supplied by an employer.
type JobInput struct {
	Title              string
	Description        string
	RequiredSkills     []string
	Location           profile.Location
	Wage               Wage
	Duration           string
	RequiredExperience int
	PreferredLanguages []string
	StartDate          time.Time
}

// Filter narrows ListJobs. Zero values match everything.
type Filter struct {
	EmployerID string
	Status     Status
	Limit      int
}
