package http

import (
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/joaosantosg/reserva-salas-uni/internal/application"
	"github.com/joaosantosg/reserva-salas-uni/internal/recurrence"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

func toPageResponse[S, T any](page application.Page[S], convert func(S) T) pageResponse[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	return pageResponse[T]{Items: items, Total: page.Total, Page: page.Page, Size: page.Size}
}

type paginationQuery struct {
	Page int `form:"page" binding:"omitempty,min=1"`
	Size int `form:"size" binding:"omitempty,min=1,max=100"`
}

func (q paginationQuery) toPagination() application.Pagination {
	return application.Pagination{Page: q.Page, Size: q.Size}
}

// parseDates converts validated YYYY-MM-DD strings. Invalid entries are
// reported under field.
func parseDates(field string, values []string, vErr *application.ValidationError) []time.Time {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := recurrence.ParseDate(strings.TrimSpace(v))
		if err != nil {
			addFieldError(vErr, field, application.CodeInvalidFormat, field+" must contain dates formatted YYYY-MM-DD")
			continue
		}
		out = append(out, d)
	}
	return out
}

func parseDate(field, value string, vErr *application.ValidationError) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	d, err := recurrence.ParseDate(strings.TrimSpace(value))
	if err != nil {
		addFieldError(vErr, field, application.CodeInvalidFormat, field+" must be a date formatted YYYY-MM-DD")
	}
	return d
}

func addFieldError(vErr *application.ValidationError, field, code, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
		vErr.FieldCodes = make(map[string]string)
	}
	if _, exists := vErr.FieldErrors[field]; exists {
		return
	}
	vErr.FieldErrors[field] = message
	vErr.FieldCodes[field] = code
}

// Auth

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken      string  `json:"access_token"`
	RefreshToken     string  `json:"refresh_token"`
	TokenType        string  `json:"token_type"`
	ExpiresAt        string  `json:"expires_at"`
	RefreshExpiresAt string  `json:"refresh_expires_at"`
	User             userDTO `json:"user"`
}

func toTokenResponse(result application.AuthenticateResult) tokenResponse {
	return tokenResponse{
		AccessToken:      result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		TokenType:        "Bearer",
		ExpiresAt:        formatTimestamp(result.Tokens.AccessExpiresAt),
		RefreshExpiresAt: formatTimestamp(result.Tokens.RefreshExpiresAt),
		User:             toUserDTO(result.User),
	}
}

// Users

type userRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	DisplayName string  `json:"display_name" binding:"required"`
	Course      string  `json:"course"`
	Password    *string `json:"password" binding:"omitempty,min=8"`
	IsAdmin     bool    `json:"is_admin"`
	Disabled    bool    `json:"disabled"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Course:      r.Course,
		Password:    r.Password,
		IsAdmin:     r.IsAdmin,
		Disabled:    r.Disabled,
	}
}

type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Course      string `json:"course,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	Disabled    bool   `json:"disabled"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Course:      user.Course,
		IsAdmin:     user.IsAdmin,
		Disabled:    user.Disabled,
		CreatedAt:   formatTimestamp(user.CreatedAt),
		UpdatedAt:   formatTimestamp(user.UpdatedAt),
	}
}

// Blocks

type blockRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

type blockDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toBlockDTO(block application.Block) blockDTO {
	return blockDTO{
		ID:        block.ID,
		Name:      block.Name,
		Code:      block.Code,
		CreatedAt: formatTimestamp(block.CreatedAt),
		UpdatedAt: formatTimestamp(block.UpdatedAt),
	}
}

// Rooms

type roomRequest struct {
	BlockID          string   `json:"block_id"`
	Code             string   `json:"code"`
	Capacity         int      `json:"capacity"`
	Resources        []string `json:"resources" binding:"omitempty,dive,max=64"`
	Restricted       bool     `json:"restricted"`
	RestrictedCourse *string  `json:"restricted_course"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		BlockID:          r.BlockID,
		Code:             r.Code,
		Capacity:         r.Capacity,
		Resources:        r.Resources,
		Restricted:       r.Restricted,
		RestrictedCourse: r.RestrictedCourse,
	}
}

type roomDTO struct {
	ID               string   `json:"id"`
	BlockID          string   `json:"block_id"`
	Code             string   `json:"code"`
	Capacity         int      `json:"capacity"`
	Resources        []string `json:"resources"`
	Restricted       bool     `json:"restricted"`
	RestrictedCourse *string  `json:"restricted_course,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
}

func toRoomDTO(room application.Room) roomDTO {
	resources := room.Resources
	if resources == nil {
		resources = []string{}
	}
	return roomDTO{
		ID:               room.ID,
		BlockID:          room.BlockID,
		Code:             room.Code,
		Capacity:         room.Capacity,
		Resources:        resources,
		Restricted:       room.Restricted,
		RestrictedCourse: room.RestrictedCourse,
		CreatedAt:        formatTimestamp(room.CreatedAt),
		UpdatedAt:        formatTimestamp(room.UpdatedAt),
	}
}

// Semesters

type semesterRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	StartDate  string `json:"start_date" binding:"required,isodate"`
	EndDate    string `json:"end_date" binding:"required,isodate"`
	Active     bool   `json:"active"`
}

type semesterDTO struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Active     bool   `json:"active"`
}

func toSemesterDTO(s application.Semester) semesterDTO {
	return semesterDTO{
		ID:         s.ID,
		Identifier: s.Identifier,
		StartDate:  s.StartDate.Format(time.DateOnly),
		EndDate:    s.EndDate.Format(time.DateOnly),
		Active:     s.Active,
	}
}

// Reservations

type reservationRequest struct {
	RoomID  string    `json:"room_id" binding:"required"`
	Purpose string    `json:"purpose"`
	Start   time.Time `json:"start" binding:"required"`
	End     time.Time `json:"end" binding:"required"`
}

func (r reservationRequest) toInput() application.ReservationInput {
	return application.ReservationInput{RoomID: r.RoomID, Purpose: r.Purpose, Start: r.Start, End: r.End}
}

type reservationQuery struct {
	paginationQuery
	RoomID         string `form:"room_id"`
	UserID         string `form:"user_id"`
	From           string `form:"from" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To             string `form:"to" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	IncludeDeleted bool   `form:"include_deleted"`
}

func (q reservationQuery) toFilter() application.ReservationFilter {
	filter := application.ReservationFilter{
		RoomID:         strings.TrimSpace(q.RoomID),
		UserID:         strings.TrimSpace(q.UserID),
		IncludeDeleted: q.IncludeDeleted,
		Pagination:     q.toPagination(),
	}
	if t, err := time.Parse(time.RFC3339, q.From); err == nil {
		filter.From = &t
	}
	if t, err := time.Parse(time.RFC3339, q.To); err == nil {
		filter.Until = &t
	}
	return filter
}

type reservationDTO struct {
	ID        string  `json:"id"`
	RoomID    string  `json:"room_id"`
	UserID    string  `json:"user_id"`
	RuleID    *string `json:"rule_id,omitempty"`
	Purpose   string  `json:"purpose"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	DeletedAt string  `json:"deleted_at,omitempty"`
	DeletedBy *string `json:"deleted_by,omitempty"`
}

func toReservationDTO(r application.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:        r.ID,
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		RuleID:    r.RuleID,
		Purpose:   r.Purpose,
		Start:     formatTimestamp(r.Start),
		End:       formatTimestamp(r.End),
		CreatedAt: formatTimestamp(r.CreatedAt),
		UpdatedAt: formatTimestamp(r.UpdatedAt),
		DeletedBy: r.DeletedBy,
	}
	if r.DeletedAt != nil {
		dto.DeletedAt = formatTimestamp(*r.DeletedAt)
	}
	return dto
}

// Recurring rules

type frequencyRequest struct {
	Kind       string `json:"kind"`
	Weekdays   []int  `json:"weekdays"`
	DayOfMonth int    `json:"day_of_month"`
}

func (f frequencyRequest) toInput() application.FrequencyInput {
	return application.FrequencyInput{Kind: f.Kind, Weekdays: f.Weekdays, DayOfMonth: f.DayOfMonth}
}

type ruleFields struct {
	Identification string           `json:"identification"`
	RoomID         string           `json:"room_id" binding:"required"`
	Purpose        string           `json:"purpose"`
	Frequency      frequencyRequest `json:"frequency"`
	StartTime      string           `json:"start_time" binding:"required,clock"`
	EndTime        string           `json:"end_time" binding:"required,clock"`
	Exceptions     []string         `json:"exceptions" binding:"omitempty,dive,isodate"`
}

type ruleRequest struct {
	ruleFields
	StartDate string `json:"start_date" binding:"required,isodate"`
	EndDate   string `json:"end_date" binding:"required,isodate"`
}

type semesterRuleRequest struct {
	ruleFields
	Semester string `json:"semester" binding:"required"`
}

func (f ruleFields) toInput(vErr *application.ValidationError) application.RuleInput {
	return application.RuleInput{
		Identification: f.Identification,
		RoomID:         f.RoomID,
		Purpose:        f.Purpose,
		Frequency:      f.Frequency.toInput(),
		StartTime:      f.StartTime,
		EndTime:        f.EndTime,
		Exceptions:     parseDates("exceptions", f.Exceptions, vErr),
	}
}

func (r ruleRequest) toInput() (application.RuleInput, error) {
	vErr := &application.ValidationError{}
	input := r.ruleFields.toInput(vErr)
	input.StartDate = parseDate("start_date", r.StartDate, vErr)
	input.EndDate = parseDate("end_date", r.EndDate, vErr)
	if vErr.HasErrors() {
		return application.RuleInput{}, vErr
	}
	return input, nil
}

type rulePatchRequest struct {
	Identification *string           `json:"identification"`
	Purpose        *string           `json:"purpose"`
	StartDate      *string           `json:"start_date" binding:"omitempty,isodate"`
	EndDate        *string           `json:"end_date" binding:"omitempty,isodate"`
	StartTime      *string           `json:"start_time" binding:"omitempty,clock"`
	EndTime        *string           `json:"end_time" binding:"omitempty,clock"`
	Frequency      *frequencyRequest `json:"frequency"`
	Exceptions     *[]string         `json:"exceptions"`
}

func (r rulePatchRequest) toPatch() (application.RulePatch, error) {
	vErr := &application.ValidationError{}
	patch := application.RulePatch{
		Identification: mo.PointerToOption(r.Identification),
		Purpose:        mo.PointerToOption(r.Purpose),
		StartTime:      mo.PointerToOption(r.StartTime),
		EndTime:        mo.PointerToOption(r.EndTime),
	}
	if r.StartDate != nil {
		patch.StartDate = mo.Some(parseDate("start_date", *r.StartDate, vErr))
	}
	if r.EndDate != nil {
		patch.EndDate = mo.Some(parseDate("end_date", *r.EndDate, vErr))
	}
	if r.Frequency != nil {
		patch.Frequency = mo.Some(r.Frequency.toInput())
	}
	if r.Exceptions != nil {
		patch.Exceptions = mo.Some(parseDates("exceptions", *r.Exceptions, vErr))
	}
	if vErr.HasErrors() {
		return application.RulePatch{}, vErr
	}
	return patch, nil
}

type ruleQuery struct {
	paginationQuery
	RoomID         string `form:"room_id"`
	UserID         string `form:"user_id"`
	Frequency      string `form:"frequency"`
	From           string `form:"from" binding:"omitempty,isodate"`
	Until          string `form:"until" binding:"omitempty,isodate"`
	IncludeDeleted bool   `form:"include_deleted"`
}

func (q ruleQuery) toFilter() application.RuleFilter {
	filter := application.RuleFilter{
		RoomID:         strings.TrimSpace(q.RoomID),
		UserID:         strings.TrimSpace(q.UserID),
		Frequency:      strings.TrimSpace(q.Frequency),
		IncludeDeleted: q.IncludeDeleted,
		Pagination:     q.toPagination(),
	}
	if d, err := recurrence.ParseDate(q.From); err == nil {
		filter.From = &d
	}
	if d, err := recurrence.ParseDate(q.Until); err == nil {
		filter.Until = &d
	}
	return filter
}

type ruleDTO struct {
	application.RuleSnapshot
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toRuleDTO(rule recurrence.Rule) ruleDTO {
	return ruleDTO{
		RuleSnapshot: application.SnapshotRule(rule),
		CreatedAt:    formatTimestamp(rule.CreatedAt),
		UpdatedAt:    formatTimestamp(rule.UpdatedAt),
	}
}

type generationDTO struct {
	Persisted int `json:"persisted"`
	Batches   int `json:"batches"`
}

type ruleResultResponse struct {
	Rule       ruleDTO       `json:"rule"`
	Generation generationDTO `json:"generation"`
}

func toRuleResultResponse(result application.RuleResult) ruleResultResponse {
	return ruleResultResponse{
		Rule:       toRuleDTO(result.Rule),
		Generation: generationDTO{Persisted: result.Generation.Persisted, Batches: result.Generation.Batches},
	}
}

func optionalReason(c interface{ Query(string) string }) *string {
	reason := strings.TrimSpace(c.Query("reason"))
	if reason == "" {
		return nil
	}
	return &reason
}
