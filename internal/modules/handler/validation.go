package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aiwendy/roundtable/internal/modules/model"
)

// RegisterValidators installs the domain validation tags on gin's binding
// engine. Called once at router construction.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("kbtiming", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", model.KBTimingOff, model.KBTimingMessage, model.KBTimingRound,
			model.KBTimingCoach, model.KBTimingModerator:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("debatestyle", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", model.DebateConverge, model.DebateClash:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("discussionmode", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", model.ModeFree, model.ModeModerated:
			return true
		}
		return false
	})
}
