package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
)

type rosterAPI struct {
	svc *roster.Service
}

func registerRosterAPI(g *echo.Group, svc *roster.Service) {
	api := rosterAPI{svc: svc}

	g.GET("/classes", api.queryClasses)
}

func (api *rosterAPI) queryClasses(ctx echo.Context) error {
	classes, err := api.svc.QueryClasses(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, classes)
}
