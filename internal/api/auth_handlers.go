package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollbook/internal/auth"
	"rollbook/internal/facematch"
)

// ---------- Login ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks email and password, sets the auth cookie and returns the token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.startSession(c, id, nil)
}

type faceLoginRequest struct {
	Descriptor []float64 `json:"descriptor" binding:"required,min=1,max=1024"`
}

// FaceLogin signs in the student whose enrolled descriptor is closest to the probe.
func (h *Handler) FaceLogin(c *gin.Context) {
	var req faceLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, match, err := h.accounts.FaceLogin(c.Request.Context(), facematch.Descriptor(req.Descriptor))
	if err != nil {
		writeError(c, err)
		return
	}
	h.startSession(c, id, gin.H{"distance": match.Distance})
}

func (h *Handler) startSession(c *gin.Context, id auth.Identity, extra gin.H) {
	tok, err := auth.Issue(id, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, tok.AccessToken, int(time.Until(tok.ExpiresAt).Seconds()), "/", "", h.cfg.CookieSecure, true)

	body := gin.H{
		"ok":         true,
		"token":      tok.AccessToken,
		"expires_at": tok.ExpiresAt.Unix(),
		"user":       id,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Logout clears the auth cookie. Bearer tokens stay valid until they expire.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me returns the caller identity.
func (h *Handler) Me(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": id})
}
