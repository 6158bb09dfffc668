package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/playlist"
)

var (
	playlistRefTag  = "playlistref"
	playlistRefText = "must be a playlist URL or a playlist id"
)

// InitValidators registers the course payload tags; call after core.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(playlistRefTag, playlistRefValidation)
	core.RegisterCustomTranslation(validate, translator, playlistRefTag, playlistRefText)
}

// playlistRefValidation accepts anything a playlist id can be extracted from.
func playlistRefValidation(fl validator.FieldLevel) bool {
	_, ok := playlist.ExtractPlaylistID(fl.Field().String())
	return ok
}
