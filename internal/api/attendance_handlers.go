package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/queue"
)

const publishTimeout = 2 * time.Second

// ---------- Record ----------

type entryRequest struct {
	RollNumber string `json:"rollNumber"`
	Status     string `json:"status" binding:"attendance_status"`
	Name       string `json:"name"`
}

type recordRequest struct {
	TeacherName string         `json:"teacherName"`
	Subject     string         `json:"subject"`
	Section     string         `json:"section"`
	Date        string         `json:"date"`
	Students    []entryRequest `json:"students" binding:"dive"`
}

func (r recordRequest) submission() attendance.Submission {
	sub := attendance.Submission{
		TeacherName: r.TeacherName,
		Subject:     r.Subject,
		Section:     r.Section,
		Date:        r.Date,
		Students:    make([]attendance.Entry, len(r.Students)),
	}
	for i, e := range r.Students {
		sub.Students[i] = attendance.Entry{RollNumber: e.RollNumber, Status: e.Status, Name: e.Name}
	}
	return sub
}

// RecordAttendance stores a roll call and announces it on the queue.
func (h *Handler) RecordAttendance(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)

	res, err := h.att.Record(c.Request.Context(), id, req.submission())
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), publishTimeout)
	defer cancel()
	if err := h.queue.Publish(ctx, queue.Message{Type: queue.TypeSessionRecorded, Body: []byte(res.SessionID)}); err != nil {
		log.Printf("queue publish %s failed: %v", res.SessionID, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":        true,
		"sessionId": res.SessionID,
		"recorded":  res.Recorded,
		"skipped":   res.Skipped,
	})
}

// ---------- Sessions ----------

func (h *Handler) ListSessions(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	sessions, err := h.att.ListSessions(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) SessionDetail(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	detail, err := h.att.SessionDetail(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "session": detail.Session, "records": detail.Records})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	if err := h.att.DeleteSession(c.Request.Context(), id, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
