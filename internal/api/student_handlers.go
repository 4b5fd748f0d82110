package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/cloudinary"
	"rollbook/internal/facematch"
)

const maxPhotoBytes = 5 << 20

// ---------- Roster ----------

func (h *Handler) ListStudents(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	students, err := h.att.ListStudents(c.Request.Context(), id, c.Query("section"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "students": students})
}

type addStudentRequest struct {
	Name       string `json:"name" binding:"required"`
	RollNumber string `json:"rollNumber" binding:"required"`
	Section    string `json:"section" binding:"required"`
	Email      string `json:"email"`
	USN        string `json:"usn"`
	Semester   string `json:"semester"`
	Password   string `json:"password"`
}

// AddStudent creates a roster row, plus a login when a password is given.
func (h *Handler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Password != "" && strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "email is required to create a login"})
		return
	}
	id, _ := auth.IdentityFrom(c)

	ns := attendance.NewStudent{
		Name:       req.Name,
		RollNumber: req.RollNumber,
		Section:    req.Section,
		Email:      req.Email,
		USN:        req.USN,
		Semester:   req.Semester,
	}
	var (
		st  attendance.Student
		err error
	)
	if req.Password != "" {
		st, err = h.att.AddStudent(c.Request.Context(), id, ns, h.accounts.StudentLogin(req.Email, req.Password))
	} else {
		st, err = h.att.AddStudent(c.Request.Context(), id, ns, nil)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "student": st, "login": req.Password != ""})
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	if err := h.att.DeleteStudent(c.Request.Context(), id, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---------- Reads ----------

// rollFor returns the requested roll number; students default to their own.
func rollFor(id auth.Identity, requested string) string {
	if strings.TrimSpace(requested) == "" && id.IsStudent() {
		return id.RollNumber
	}
	return requested
}

func (h *Handler) StudentHistory(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	hist, err := h.att.StudentHistory(c.Request.Context(), id, c.Param("roll"), c.Query("section"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "student": hist.Student, "history": hist.History})
}

func (h *Handler) StudentMetrics(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	m, err := h.att.Metrics(c.Request.Context(), id, rollFor(id, c.Query("roll")), c.Query("section"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "metrics": m})
}

func (h *Handler) Profile(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	st, err := h.att.Student(c.Request.Context(), id, rollFor(id, c.Query("roll")), c.Query("section"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "student": st, "has_face": st.HasFace()})
}

// ---------- Self service ----------

type profileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	USN      *string `json:"usn"`
	Semester *string `json:"semester"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	st, err := h.att.UpdateProfile(c.Request.Context(), id, attendance.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		USN:      req.USN,
		Semester: req.Semester,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "student": st})
}

// UploadPhoto stores a profile photo in Cloudinary. It accepts a multipart
// "photo" file or a JSON body {"data": "<base64 data URL>"}.
func (h *Handler) UploadPhoto(c *gin.Context) {
	if h.uploads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "image storage not configured"})
		return
	}
	id, _ := auth.IdentityFrom(c)
	ctx := c.Request.Context()
	me, err := h.att.Self(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	var result *cloudinary.UploadResult
	switch {
	case strings.Contains(c.ContentType(), "multipart/form-data"):
		file, header, ferr := c.Request.FormFile("photo")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "photo file is required"})
			return
		}
		defer file.Close()
		data, ferr := io.ReadAll(file)
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "failed to read photo"})
			return
		}
		result, err = h.uploads.UploadBytes(ctx, me.ID, data, header.Filename)
	default:
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": `provide {"data": "<base64 data URL>"} or a multipart photo`})
			return
		}
		if !strings.HasPrefix(body.Data, "data:image/") {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "data must be an image data URL"})
			return
		}
		result, err = h.uploads.UploadDataURL(ctx, me.ID, body.Data)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "photo too large"})
			return
		}
		log.Printf("cloudinary upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "image upload failed"})
		return
	}

	st, err := h.att.UpdatePhoto(ctx, id, result.SecureURL)
	if err != nil {
		writeError(c, err)
		return
	}
	enrolled := h.enrollFromPhoto(ctx, id, result.SecureURL)
	c.JSON(http.StatusOK, gin.H{"ok": true, "student": st, "photo_url": result.SecureURL, "face_enrolled": enrolled})
}

// enrollFromPhoto stores a descriptor computed by the face service. Failures
// are logged; the photo upload itself already succeeded.
func (h *Handler) enrollFromPhoto(ctx context.Context, id auth.Identity, photoURL string) bool {
	if h.faces == nil {
		return false
	}
	emb, err := h.faces.Embed(ctx, photoURL)
	if err != nil {
		log.Printf("face embed for %s failed: %v", id.UserID, err)
		return false
	}
	token, err := emb.Descriptor.Encode()
	if err == nil {
		err = h.att.UpdateFaceToken(ctx, id, token)
	}
	if err != nil {
		log.Printf("store face token for %s failed: %v", id.UserID, err)
		return false
	}
	return true
}

type faceRequest struct {
	Descriptor []float64 `json:"descriptor" binding:"required,min=1,max=1024"`
}

// EnrollFace stores the caller's face descriptor for face login.
func (h *Handler) EnrollFace(c *gin.Context) {
	var req faceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d := facematch.Descriptor(req.Descriptor)
	if err := d.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	token, err := d.Encode()
	if err != nil {
		writeError(c, err)
		return
	}
	id, _ := auth.IdentityFrom(c)
	if err := h.att.UpdateFaceToken(c.Request.Context(), id, token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "dimensions": len(d)})
}
