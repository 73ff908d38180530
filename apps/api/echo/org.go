package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core/authz"
	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/user"
)

type orgApi struct {
	svc      org.ServiceInterface
	userSvc  user.ServiceInterface
	gate     *authz.Gate
	validate *validator.Validate
}

func registerOrgAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc org.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := orgApi{
		svc:      svc,
		userSvc:  userSvc,
		gate:     authz.NewGate(svc),
		validate: validate,
	}

	og := g.Group("/orgs", jwt)
	og.POST("", api.create, adminMiddleware())
	og.GET("", api.query)
	og.GET("/:id", api.retrieve)
	og.PUT("/:id", api.update, adminMiddleware())
	og.DELETE("", api.destroyMultiple, adminMiddleware())

	mg := og.Group("/:id/members", adminMiddleware())
	mg.POST("", api.addMember)
	mg.GET("", api.queryMembers)
	mg.DELETE("/:userID", api.removeMember)
}

// Handlers

func (api *orgApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.gate.RequireMasterAdmin(ctxUsr); err != nil {
		return err
	}

	var data org.NewOrg
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrg")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	o, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating org")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *orgApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	orgs, err := api.svc.Query(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying orgs")
	}
	if orgs == nil {
		orgs = []org.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *orgApi) retrieve(ctx echo.Context) error {
	o, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) update(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.gate.RequireOrgAdmin(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return err
	}

	var data org.UpdateOrg
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOrg")
	}

	o, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = data.Validate(ctx.Request().Context(), o, api.validate, api.svc); err != nil {
		return err
	}

	o, err = api.svc.Update(ctx.Request().Context(), o.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating org")
	}
	return ctx.JSON(http.StatusOK, o)
}

func (api *orgApi) destroyMultiple(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.gate.RequireMasterAdmin(ctxUsr); err != nil {
		return err
	}

	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting orgs")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *orgApi) addMember(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.gate.RequireOrgAdmin(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return err
	}

	var data org.NewMembership
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMembership")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	// members cannot be granted a role above the grantor's
	if err := api.gate.CheckRoleCeiling(ctxUsr, []string{data.Role}); err != nil {
		return err
	}

	m, err := api.svc.AddMember(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *orgApi) queryMembers(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.gate.RequireOrgStaff(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return err
	}

	members, err := api.svc.QueryMembers(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []org.Membership{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *orgApi) removeMember(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.gate.RequireOrgAdmin(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return err
	}

	if err := api.svc.RemoveMember(ctx.Request().Context(), ctx.Param("userID"), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
