package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/leaderboard"
	"github.com/playlms/backend/core/progress"
)

type progressApi struct {
	svc      *progress.Service
	validate *validator.Validate
}

// registerProgressAPI mounts enrollment and learning-progress endpoints
// under the authed /courses group.
func registerProgressAPI(courses *echo.Group, svc *progress.Service, validate *validator.Validate) {
	api := progressApi{svc: svc, validate: validate}

	courses.POST("/:slug/enroll", api.enroll)
	courses.POST("/:slug/watch", api.watch)
	courses.GET("/:slug/progress", api.retrieve)
	courses.GET("/:slug/progress/stats", api.stats)
	courses.POST("/:slug/modules/:order/notes", api.addNote)
	courses.DELETE("/:slug/modules/:order/notes/:id", api.deleteNote)
	courses.POST("/:slug/modules/:order/bookmarks", api.addBookmark)
	courses.DELETE("/:slug/modules/:order/bookmarks/:id", api.deleteBookmark)
	courses.POST("/:slug/sessions", api.recordSession)
}

func moduleOrderParam(ctx echo.Context) (int, error) {
	order, err := strconv.Atoi(ctx.Param("order"))
	if err != nil || order < 1 {
		return 0, core.NewValidationError(errors.New("invalid module order"), core.FieldError{
			Field: "module_order", Error: "must be a positive integer"})
	}
	return order, nil
}

// Handlers

func (api *progressApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	prg, err := api.svc.Enroll(ctx.Request().Context(), claims.Subject, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, prg)
}

func (api *progressApi) watch(ctx echo.Context) error {
	var data progress.WatchUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WatchUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.RecordWatch(ctx.Request().Context(), claims.Subject, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "recording watch update")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	prg, err := api.svc.Get(ctx.Request().Context(), claims.Subject, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, prg)
}

func (api *progressApi) stats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	prg, err := api.svc.Get(ctx.Request().Context(), claims.Subject, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, leaderboard.Stats(prg))
}

func (api *progressApi) addNote(ctx echo.Context) error {
	order, err := moduleOrderParam(ctx)
	if err != nil {
		return err
	}

	var data progress.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	data.ModuleOrder = order
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	note, err := api.svc.AddNote(ctx.Request().Context(), claims.Subject, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "adding note")
	}
	return ctx.JSON(http.StatusCreated, note)
}

func (api *progressApi) deleteNote(ctx echo.Context) error {
	order, err := moduleOrderParam(ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.DeleteNote(ctx.Request().Context(), claims.Subject, ctx.Param("slug"), order, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) addBookmark(ctx echo.Context) error {
	order, err := moduleOrderParam(ctx)
	if err != nil {
		return err
	}

	var data progress.NewBookmark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBookmark")
	}
	data.ModuleOrder = order
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	bkm, err := api.svc.AddBookmark(ctx.Request().Context(), claims.Subject, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "adding bookmark")
	}
	return ctx.JSON(http.StatusCreated, bkm)
}

func (api *progressApi) deleteBookmark(ctx echo.Context) error {
	order, err := moduleOrderParam(ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.DeleteBookmark(ctx.Request().Context(), claims.Subject, ctx.Param("slug"), order, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting bookmark")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) recordSession(ctx echo.Context) error {
	var data progress.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sess, err := api.svc.RecordSession(ctx.Request().Context(), claims.Subject, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "recording session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}
