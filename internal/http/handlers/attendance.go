package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/campuskit/schoolhub/internal/actorctx"
	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/domain/attendance"
	"github.com/campuskit/schoolhub/internal/domain/class"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type AttendanceRepo interface {
	MarkBulk(ctx context.Context, records []attendance.Record) error
	ListForClassDate(ctx context.Context, classID string, date time.Time) ([]attendance.Record, error)
	SummaryForStudent(ctx context.Context, studentID string, from, to time.Time) (attendance.Summary, error)
}

type AttendanceHandler struct {
	repo AttendanceRepo
}

func NewAttendanceHandler(repo AttendanceRepo) *AttendanceHandler {
	return &AttendanceHandler{repo: repo}
}

// Mark records a whole class for one date in a single upsert batch.
func (h *AttendanceHandler) Mark(ctx *gin.Context) {
	var req attendance.MarkRequest

	if !BindJSON(ctx, &req) {
		return
	}

	date, err := time.Parse(dateLayout, req.Date)

	if err != nil {
		RespondBadRequest(ctx, "date must be formatted YYYY-MM-DD", nil)
		return
	}

	req.ClassID = ctx.Param("id")
	req.RecordedBy, _ = actorctx.UserIDFrom(ctx.Request.Context())

	records, err := req.Records(date)

	if err != nil {
		RespondBadRequest(ctx, "status must be one of present, absent, late, excused", nil)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err = h.repo.MarkBulk(cctx, records)

	if err != nil {
		switch {
		case errors.Is(err, class.ErrNotFound):
			RespondNotFound(ctx, "Class not found")
		case errors.Is(err, attendance.ErrUnknownStudent):
			RespondBadRequest(ctx, "One or more students do not exist", nil)
		default:
			RespondInternal(ctx, "Could not record attendance")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": gin.H{"marked": len(records), "date": req.Date}})
}

func (h *AttendanceHandler) ListForClass(ctx *gin.Context) {
	date, err := time.Parse(dateLayout, ctx.Query("date"))

	if err != nil {
		RespondBadRequest(ctx, "date query parameter must be formatted YYYY-MM-DD", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	records, err := h.repo.ListForClassDate(cctx, ctx.Param("id"), date)

	if err != nil {
		RespondInternal(ctx, "Could not fetch attendance")
		return
	}

	if records == nil {
		records = []attendance.Record{}
	}

	ctx.JSON(http.StatusOK, gin.H{"data": records})
}

// StudentSummary aggregates one student's attendance over a date range.
// Defaults to the last 30 days when no range is given.
func (h *AttendanceHandler) StudentSummary(ctx *gin.Context) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := ctx.Query("from"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			RespondBadRequest(ctx, "from must be formatted YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}

	if v := ctx.Query("to"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			RespondBadRequest(ctx, "to must be formatted YYYY-MM-DD", nil)
			return
		}
		to = parsed
	}

	if to.Before(from) {
		RespondBadRequest(ctx, "to must not be before from", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	summary, err := h.repo.SummaryForStudent(cctx, ctx.Param("id"), from, to)

	if err != nil {
		RespondInternal(ctx, "Could not build attendance summary")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": summary})
}
