package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core/coin"
	"github.com/trezcool/tuzo/core/engagement"
	"github.com/trezcool/tuzo/core/user"
)

type engagementApi struct {
	svc      coin.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerEngagementAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc coin.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := engagementApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	og := g.Group("/orgs/:id/engagements", jwt)
	og.POST("", api.create)
	og.GET("", api.query)

	eg := g.Group("/engagements/:id", jwt)
	eg.GET("", api.retrieve)
	eg.POST("/fund", api.fund)
	eg.POST("/distribute", api.distribute)
	eg.GET("/recipients", api.queryRecipients)
	eg.PUT("/recipients", api.upsertRecipient)
	eg.DELETE("/recipients", api.removeRecipient)
}

// Handlers

func (api *engagementApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data engagement.NewEngagement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEngagement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.CreateEngagement(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *engagementApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	engagements, err := api.svc.QueryEngagements(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if engagements == nil {
		engagements = []engagement.Engagement{}
	}
	return ctx.JSON(http.StatusOK, engagements)
}

func (api *engagementApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	e, err := api.svc.GetEngagement(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *engagementApi) fund(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data coin.Funding
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Funding")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.FundEngagement(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *engagementApi) distribute(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	e, err := api.svc.DistributeEngagement(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *engagementApi) queryRecipients(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	recipients, err := api.svc.QueryRecipients(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if recipients == nil {
		recipients = []engagement.Recipient{}
	}
	return ctx.JSON(http.StatusOK, recipients)
}

func (api *engagementApi) upsertRecipient(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data engagement.NewRecipient
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecipient")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.UpsertRecipient(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *engagementApi) removeRecipient(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	email := ctx.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email query parameter is required")
	}

	if err := api.svc.RemoveRecipient(ctx.Request().Context(), ctxUsr, ctx.Param("id"), email); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
