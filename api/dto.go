package api

import (
	"time"

	"gigmatch/auth"
	"gigmatch/job"
	"gigmatch/matching"
	"gigmatch/profile"
)

type locationDTO struct {
	Address     string    `json:"address,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

// toLocation converts the wire form; coordinates are [lon, lat].
func (l *locationDTO) toLocation() (profile.Location, error) {
	if l == nil {
		return profile.Location{}, nil
	}
	loc := profile.Location{Address: l.Address}
	switch len(l.Coordinates) {
	case 0:
	case 2:
		loc.Point = &profile.Point{Lon: l.Coordinates[0], Lat: l.Coordinates[1]}
	default:
		return profile.Location{}, badRequest("location.coordinates", "must be [longitude, latitude]")
	}
	return loc, nil
}

func locationFrom(l profile.Location) *locationDTO {
	if l.Address == "" && l.Point == nil {
		return nil
	}
	out := &locationDTO{Address: l.Address}
	if l.Point != nil {
		out.Coordinates = []float64{l.Point.Lon, l.Point.Lat}
	}
	return out
}

type registerWorkerRequest struct {
	Name        string       `json:"name"`
	Age         *int         `json:"age"`
	Phone       string       `json:"phone"`
	Password    string       `json:"password"`
	Skills      []string     `json:"skills"`
	Experience  int          `json:"experience"`
	Languages   []string     `json:"languages"`
	Location    *locationDTO `json:"location"`
	IsAvailable *bool        `json:"isAvailable"`
}

func (r registerWorkerRequest) toInput() (profile.WorkerInput, error) {
	switch {
	case r.Name == "":
		return profile.WorkerInput{}, badRequest("name", "is required")
	case r.Age == nil:
		return profile.WorkerInput{}, badRequest("age", "is required")
	case r.Phone == "":
		return profile.WorkerInput{}, badRequest("phone", "is required")
	case r.Password == "":
		return profile.WorkerInput{}, badRequest("password", "is required")
	}
	loc, err := r.Location.toLocation()
	if err != nil {
		return profile.WorkerInput{}, err
	}
	return profile.WorkerInput{
		Name:        r.Name,
		Age:         *r.Age,
		Phone:       r.Phone,
		Password:    r.Password,
		Skills:      r.Skills,
		Experience:  r.Experience,
		Languages:   r.Languages,
		Location:    loc,
		IsAvailable: r.IsAvailable,
	}, nil
}

type updateWorkerRequest struct {
	Name        *string      `json:"name"`
	Age         *int         `json:"age"`
	Skills      []string     `json:"skills"`
	Experience  *int         `json:"experience"`
	Languages   []string     `json:"languages"`
	Location    *locationDTO `json:"location"`
	IsAvailable *bool        `json:"isAvailable"`
}

func (r updateWorkerRequest) toUpdate() (profile.WorkerUpdate, error) {
	upd := profile.WorkerUpdate{
		Name:        r.Name,
		Age:         r.Age,
		Skills:      r.Skills,
		Experience:  r.Experience,
		Languages:   r.Languages,
		IsAvailable: r.IsAvailable,
	}
	if r.Location != nil {
		loc, err := r.Location.toLocation()
		if err != nil {
			return profile.WorkerUpdate{}, err
		}
		upd.Location = &loc
	}
	return upd, nil
}

type workerResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Age         int          `json:"age"`
	Phone       string       `json:"phone"`
	Skills      []string     `json:"skills"`
	Experience  int          `json:"experience"`
	Languages   []string     `json:"languages"`
	Location    *locationDTO `json:"location,omitempty"`
	ShaktiScore float64      `json:"shaktiScore"`
	IsAvailable bool         `json:"isAvailable"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func workerFrom(w profile.Worker) workerResponse {
	return workerResponse{
		ID:          w.ID,
		Name:        w.Name,
		Age:         w.Age,
		Phone:       w.Phone,
		Skills:      nonNil(w.Skills),
		Experience:  w.Experience,
		Languages:   nonNil(w.Languages),
		Location:    locationFrom(w.Location),
		ShaktiScore: w.ShaktiScore,
		IsAvailable: w.IsAvailable,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

type companyDTO struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
}

type registerEmployerRequest struct {
	Name     string       `json:"name"`
	Phone    string       `json:"phone"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Company  companyDTO   `json:"company"`
	Location *locationDTO `json:"location"`
}

func (r registerEmployerRequest) toInput() (profile.EmployerInput, error) {
	switch {
	case r.Name == "":
		return profile.EmployerInput{}, badRequest("name", "is required")
	case r.Phone == "":
		return profile.EmployerInput{}, badRequest("phone", "is required")
	case r.Password == "":
		return profile.EmployerInput{}, badRequest("password", "is required")
	}
	loc, err := r.Location.toLocation()
	if err != nil {
		return profile.EmployerInput{}, err
	}
	return profile.EmployerInput{
		Name:     r.Name,
		Phone:    r.Phone,
		Email:    r.Email,
		Password: r.Password,
		Company: profile.Company{
			Name:               r.Company.Name,
			Description:        r.Company.Description,
			RegistrationNumber: r.Company.RegistrationNumber,
		},
		Location: loc,
	}, nil
}

type employerResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Phone     string       `json:"phone"`
	Email     string       `json:"email,omitempty"`
	Company   companyDTO   `json:"company"`
	Location  *locationDTO `json:"location,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

func employerFrom(e profile.Employer) employerResponse {
	return employerResponse{
		ID:    e.ID,
		Name:  e.Name,
		Phone: e.Phone,
		Email: e.Email,
		Company: companyDTO{
			Name:               e.Company.Name,
			Description:        e.Company.Description,
			RegistrationNumber: e.Company.RegistrationNumber,
		},
		Location:  locationFrom(e.Location),
		CreatedAt: e.CreatedAt,
	}
}

type wageDTO struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"`
}

type postJobRequest struct {
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	RequiredSkills     []string     `json:"requiredSkills"`
	Location           *locationDTO `json:"location"`
	Wage               *wageDTO     `json:"wage"`
	Duration           string       `json:"duration"`
	RequiredExperience int          `json:"requiredExperience"`
	PreferredLanguages []string     `json:"preferredLanguages"`
	StartDate          *time.Time   `json:"startDate"`
}

func (r postJobRequest) toInput() (job.JobInput, error) {
	switch {
	case r.Title == "":
		return job.JobInput{}, badRequest("title", "is required")
	case len(r.RequiredSkills) == 0:
		return job.JobInput{}, badRequest("requiredSkills", "is required")
	case r.Wage == nil:
		return job.JobInput{}, badRequest("wage", "is required")
	case r.StartDate == nil:
		return job.JobInput{}, badRequest("startDate", "is required")
	}
	loc, err := r.Location.toLocation()
	if err != nil {
		return job.JobInput{}, err
	}
	return job.JobInput{
		Title:              r.Title,
		Description:        r.Description,
		RequiredSkills:     r.RequiredSkills,
		Location:           loc,
		Wage:               job.Wage{Amount: r.Wage.Amount, Period: job.WagePeriod(r.Wage.Period)},
		Duration:           r.Duration,
		RequiredExperience: r.RequiredExperience,
		PreferredLanguages: r.PreferredLanguages,
		StartDate:          *r.StartDate,
	}, nil
}

type jobResponse struct {
	ID                 string       `json:"id"`
	EmployerID         string       `json:"employerId"`
	Title              string       `json:"title"`
	Description        string       `json:"description,omitempty"`
	RequiredSkills     []string     `json:"requiredSkills"`
	Location           *locationDTO `json:"location,omitempty"`
	Wage               wageDTO      `json:"wage"`
	Duration           string       `json:"duration,omitempty"`
	RequiredExperience int          `json:"requiredExperience"`
	PreferredLanguages []string     `json:"preferredLanguages"`
	StartDate          time.Time    `json:"startDate"`
	Status             string       `json:"status"`
	CreatedAt          time.Time    `json:"createdAt"`
}

func jobFrom(j job.Job) jobResponse {
	return jobResponse{
		ID:                 j.ID,
		EmployerID:         j.EmployerID,
		Title:              j.Title,
		Description:        j.Description,
		RequiredSkills:     nonNil(j.RequiredSkills),
		Location:           locationFrom(j.Location),
		Wage:               wageDTO{Amount: j.Wage.Amount, Period: string(j.Wage.Period)},
		Duration:           j.Duration,
		RequiredExperience: j.RequiredExperience,
		PreferredLanguages: nonNil(j.PreferredLanguages),
		StartDate:          j.StartDate,
		Status:             string(j.Status),
		CreatedAt:          j.CreatedAt,
	}
}

func jobsFrom(jobs []job.Job) []jobResponse {
	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = jobFrom(j)
	}
	return out
}

type applicationResponse struct {
	ID            string             `json:"id"`
	JobID         string             `json:"jobId"`
	WorkerID      string             `json:"workerId"`
	Status        string             `json:"status"`
	AppliedAt     time.Time          `json:"appliedAt"`
	PaymentStatus string             `json:"paymentStatus"`
	PaymentAmount *float64           `json:"paymentAmount,omitempty"`
	PaymentDate   *time.Time         `json:"paymentDate,omitempty"`
	History       []job.HistoryEntry `json:"history"`
}

func applicationFrom(a job.Application) applicationResponse {
	history := a.History
	if history == nil {
		history = []job.HistoryEntry{}
	}
	return applicationResponse{
		ID:            a.ID,
		JobID:         a.JobID,
		WorkerID:      a.WorkerID,
		Status:        string(a.Status),
		AppliedAt:     a.AppliedAt,
		PaymentStatus: string(a.PaymentStatus),
		PaymentAmount: a.PaymentAmount,
		PaymentDate:   a.PaymentDate,
		History:       history,
	}
}

func applicationsFrom(apps []job.Application) []applicationResponse {
	out := make([]applicationResponse, len(apps))
	for i, a := range apps {
		out[i] = applicationFrom(a)
	}
	return out
}

type statusRequest struct {
	Status string `json:"status"`
}

type paymentRequest struct {
	Amount float64 `json:"amount"`
}

type matchResponse struct {
	Job   jobResponse `json:"job"`
	Score float64     `json:"score"`
}

func matchesFrom(ms []matching.Match) []matchResponse {
	out := make([]matchResponse, len(ms))
	for i, m := range ms {
		out[i] = matchResponse{Job: jobFrom(m.Job), Score: m.Score}
	}
	return out
}

type dimensionResponse struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

type breakdownResponse struct {
	Score      float64             `json:"score"`
	Eligible   bool                `json:"eligible"`
	DistanceKm *float64            `json:"distanceKm,omitempty"`
	Dimensions []dimensionResponse `json:"dimensions"`
}

func breakdownFrom(b matching.Breakdown) breakdownResponse {
	dims := make([]dimensionResponse, len(b.Dimensions))
	for i, d := range b.Dimensions {
		dims[i] = dimensionResponse{Name: d.Name, Value: d.Value, Weight: d.Weight}
	}
	return breakdownResponse{Score: b.Score, Eligible: b.Eligible, DistanceKm: b.DistanceKm, Dimensions: dims}
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type sessionResponse struct {
	Token     string    `json:"token,omitempty"`
	SessionID string    `json:"sessionId"`
	Subject   string    `json:"subject"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
