package pomelox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/models"
)

// TimeLayout is the wall-clock format the API uses for record times.
const TimeLayout = "2006-01-02 15:04:05"

// Sign record types of /app/hour/signRecord.
const (
	RecordSignIn  = 1
	RecordSignOut = 2
)

// SignRecord is a volunteer check-in or check-out. StartTime is required for
// check-in, EndTime and RecordID for check-out.
type SignRecord struct {
	UserID           int64
	OperateUserID    int64
	OperateLegalName string
	StartTime        time.Time
	EndTime          time.Time
	RecordID         int64
}

// VolunteerSignIn opens a volunteer record for r.UserID.
func (c *Client) VolunteerSignIn(ctx context.Context, r SignRecord) error {
	if r.UserID <= 0 || r.StartTime.IsZero() {
		return fmt.Errorf("%w: userId and startTime are required", ErrInvalidRequest)
	}
	form := signForm(r, RecordSignIn)
	form.Set("startTime", r.StartTime.Format(TimeLayout))
	if _, err := c.call(ctx, request{method: http.MethodPost, path: "/app/hour/signRecord", form: form, auth: true}); err != nil {
		return fmt.Errorf("volunteer sign in: %w", err)
	}
	return nil
}

// VolunteerSignOut closes record r.RecordID.
func (c *Client) VolunteerSignOut(ctx context.Context, r SignRecord) error {
	if r.UserID <= 0 || r.EndTime.IsZero() || r.RecordID <= 0 {
		return fmt.Errorf("%w: userId, endTime and record id are required", ErrInvalidRequest)
	}
	form := signForm(r, RecordSignOut)
	form.Set("endTime", r.EndTime.Format(TimeLayout))
	form.Set("id", strconv.FormatInt(r.RecordID, 10))
	if _, err := c.call(ctx, request{method: http.MethodPost, path: "/app/hour/signRecord", form: form, auth: true}); err != nil {
		return fmt.Errorf("volunteer sign out: %w", err)
	}
	return nil
}

func signForm(r SignRecord, typ int) url.Values {
	form := url.Values{}
	form.Set("userId", strconv.FormatInt(r.UserID, 10))
	form.Set("type", strconv.Itoa(typ))
	if r.OperateUserID > 0 {
		form.Set("operateUserId", strconv.FormatInt(r.OperateUserID, 10))
	}
	setIf(form, "operateLegalName", r.OperateLegalName)
	return form
}

// RecordFilter narrows record and hour listings. Zero fields are omitted.
type RecordFilter struct {
	UserID int64
	DeptID int64
}

func (f RecordFilter) values() url.Values {
	v := url.Values{}
	if f.UserID > 0 {
		v.Set("userId", strconv.FormatInt(f.UserID, 10))
	}
	if f.DeptID > 0 {
		v.Set("deptId", strconv.FormatInt(f.DeptID, 10))
	}
	return v
}

// RecordList lists volunteer records.
func (c *Client) RecordList(ctx context.Context, f RecordFilter) ([]models.VolunteerRecord, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/hour/recordList", query: f.values(), auth: true})
	if err != nil {
		return nil, fmt.Errorf("record list: %w", err)
	}
	rows, _, err := decodeRows[models.VolunteerRecord](env)
	if err != nil {
		return nil, fmt.Errorf("record list: %w", err)
	}
	return rows, nil
}

// HourList lists accumulated volunteer time.
func (c *Client) HourList(ctx context.Context, f RecordFilter) ([]models.VolunteerHours, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/app/hour/hourList", query: f.values(), auth: true})
	if err != nil {
		return nil, fmt.Errorf("hour list: %w", err)
	}
	rows, _, err := decodeRows[models.VolunteerHours](env)
	if err != nil {
		return nil, fmt.Errorf("hour list: %w", err)
	}
	return rows, nil
}

// LastRecord returns the most recent volunteer record of userID. When
// /app/hour/lastRecordList fails with a server or transport error the record
// list is fetched instead and the record with the highest id wins.
func (c *Client) LastRecord(ctx context.Context, userID int64) (*models.VolunteerRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	env, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/app/hour/lastRecordList",
		query:  url.Values{"userId": {strconv.FormatInt(userID, 10)}},
		auth:   true,
	})
	switch {
	case err == nil:
		var rec models.VolunteerRecord
		ok, err := decodeData(env, &rec)
		if err != nil {
			return nil, fmt.Errorf("last record: %w", err)
		}
		if !ok || rec.ID == 0 {
			return nil, ErrNoRecord
		}
		return &rec, nil
	case ctx.Err() != nil:
		return nil, err
	case !shouldFallBack(err):
		return nil, fmt.Errorf("last record: %w", err)
	}

	c.log.Warn("lastRecordList failed, falling back to recordList",
		zap.Int64("user_id", userID), zap.Error(err))
	records, err := c.RecordList(ctx, RecordFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("last record fallback: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecord
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	return &records[0], nil
}

func shouldFallBack(err error) bool {
	var se *StatusError
	return errors.Is(err, ErrNetwork) || errors.As(err, &se) || IsServerError(err)
}

// Status is a volunteer's check-in state.
type Status string

const (
	StatusNotSignedIn Status = "not_signed_in"
	StatusSignedIn    Status = "signed_in"
	StatusSignedOut   Status = "signed_out"
)

// VolunteerStatus derives the current state from the last record.
func VolunteerStatus(last *models.VolunteerRecord) Status {
	switch {
	case last == nil:
		return StatusNotSignedIn
	case last.EndTime != "":
		return StatusSignedOut
	case last.StartTime != "":
		return StatusSignedIn
	}
	return StatusNotSignedIn
}

// FormatMinutes renders a duration as hours and minutes, e.g. "2小时5分钟".
func FormatMinutes(minutes int64) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d小时%d分钟", h, m)
	case h > 0:
		return fmt.Sprintf("%d小时", h)
	}
	return fmt.Sprintf("%d分钟", m)
}

// HourStats summarizes an hour listing.
type HourStats struct {
	TotalVolunteers  int   `json:"totalVolunteers"`
	ActiveVolunteers int   `json:"activeVolunteers"`
	TotalHours       int64 `json:"totalHours"`
}

// SummarizeHours counts volunteers, those with any time, and the total hours
// rounded to the nearest hour.
func SummarizeHours(rows []models.VolunteerHours) HourStats {
	var s HourStats
	var minutes int64
	for _, r := range rows {
		s.TotalVolunteers++
		if r.TotalMinutes > 0 {
			s.ActiveVolunteers++
		}
		minutes += r.TotalMinutes
	}
	s.TotalHours = (minutes + 30) / 60
	return s
}
