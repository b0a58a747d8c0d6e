package api

import "github.com/pepabo/dify-cron/internal/domain"

// maskedSecret replaces a non-empty API secret in responses.
const maskedSecret = "***"

type ScheduleResponse struct {
	Minute     string `json:"minute"`
	Hour       string `json:"hour"`
	DayOfMonth string `json:"day"`
	Month      string `json:"month"`
	DayOfWeek  string `json:"day_of_week"`
}

type AppResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Enabled     bool             `json:"enabled"`
	APISecret   string           `json:"api_secret"`
	Schedule    ScheduleResponse `json:"schedule"`
	Args        string           `json:"args"`
	LastSync    string           `json:"last_sync"`
	LastRun     string           `json:"last_run"`
}

type ListAppsResponse struct {
	Apps []AppResponse `json:"apps"`
}

type UpdateCellRequest struct {
	Value string `json:"value"`
}

type SyncResponse struct {
	Rows       int      `json:"rows"`
	Guarded    bool     `json:"guarded"`
	Created    []string `json:"created"`
	Updated    []string `json:"updated"`
	Removed    []string `json:"removed"`
	Duplicates []string `json:"duplicates"`
}

type RunResponse struct {
	Due       []string `json:"due"`
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
	Errors    []string `json:"errors"`
}

type StatsResponse struct {
	AppID  string           `json:"app_id"`
	Hour   string           `json:"hour"`
	Counts map[string]int64 `json:"counts"`
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toAppResponse(row domain.AppRow) AppResponse {
	secret := ""
	if row.APISecret != "" {
		secret = maskedSecret
	}
	return AppResponse{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Enabled:     row.Enabled,
		APISecret:   secret,
		Schedule: ScheduleResponse{
			Minute:     row.Schedule.Minute,
			Hour:       row.Schedule.Hour,
			DayOfMonth: row.Schedule.DayOfMonth,
			Month:      row.Schedule.Month,
			DayOfWeek:  row.Schedule.DayOfWeek,
		},
		Args:     row.Args,
		LastSync: row.LastSync,
		LastRun:  row.LastRun,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
