package api

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"rollbook/internal/attendance"
)

const statusTag = "attendance_status"

var registerOnce sync.Once

// registerValidators adds the attendance_status tag to gin's validator.
// Blank values pass; the service skips those entries.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if strings.TrimSpace(s) == "" {
				return true
			}
			_, ok := attendance.ParseStatus(s)
			return ok
		})
	})
}
