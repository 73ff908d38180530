package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core/coin"
	"github.com/trezcool/tuzo/core/quest"
	"github.com/trezcool/tuzo/core/user"
)

type questApi struct {
	svc      quest.ServiceInterface
	coinSvc  coin.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerQuestAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc quest.ServiceInterface,
	coinSvc coin.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := questApi{
		svc:      svc,
		coinSvc:  coinSvc,
		userSvc:  userSvc,
		validate: validate,
	}

	qg := g.Group("/quests", jwt)
	qg.POST("", api.create)
	qg.GET("", api.query)
	qg.GET("/:id", api.retrieve)
	qg.PUT("/:id", api.update)
	qg.POST("/:id/submit", api.submit)
	qg.POST("/:id/archive", api.archive)
	qg.POST("/:id/approve", api.approve)
	qg.POST("/:id/reject", api.reject)
}

// Handlers

func (api *questApi) create(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// students cannot author quests
	if user.MaxRolePriority(ctxUsr.Roles) < user.RolePriority(user.RoleStaff) {
		return errHttpForbidden
	}

	var data quest.NewQuest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	q, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating quest")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *questApi) query(ctx echo.Context) error {
	filter := new(quest.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []quest.Quest{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	quests, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying quests")
	}
	if quests == nil {
		quests = []quest.Quest{}
	}
	return ctx.JSON(http.StatusOK, quests)
}

func (api *questApi) retrieve(ctx echo.Context) error {
	q, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) update(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data quest.UpdateQuest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuest")
	}
	if err := data.Validate(ctx.Request().Context(), q, api.validate); err != nil {
		return err
	}

	q, err = api.svc.Update(ctx.Request().Context(), ctxUsr, q.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) submit(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) archive(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := api.svc.Archive(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) approve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	q, err := api.coinSvc.ApproveQuest(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *questApi) reject(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}

	q, err := api.coinSvc.RejectQuest(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, q)
}

type RejectRequest struct {
	Reason string `json:"reason"`
}
