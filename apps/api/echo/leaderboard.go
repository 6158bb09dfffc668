package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/playlms/backend/core/leaderboard"
)

type leaderboardApi struct {
	svc *leaderboard.Service
}

func registerLeaderboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *leaderboard.Service) {
	api := leaderboardApi{svc: svc}
	g.GET("/leaderboard", api.rank, jwt)
}

func (api *leaderboardApi) rank(ctx echo.Context) error {
	metric := ctx.QueryParam("metric")
	if metric == "" {
		metric = leaderboard.MetricExperience
	}

	limit := 0
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	entries, err := api.svc.Rank(ctx.Request().Context(), metric, limit)
	if err != nil {
		return errors.Wrap(err, "ranking learners")
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
