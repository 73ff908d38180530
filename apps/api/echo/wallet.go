package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core/coin"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
)

type walletApi struct {
	svc      coin.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerWalletAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc coin.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := walletApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	wg := g.Group("/wallet", jwt)
	wg.GET("/me", api.myWallet)
	wg.GET("/me/ledger", api.myLedger)
	wg.GET("/users/:id", api.userBalances)
	wg.POST("/allocations", api.allocate)
	wg.POST("/orgs/:id/fund", api.fundOrg)
	wg.POST("/awards", api.award)
	wg.POST("/adjustments", api.adjust)
}

// Handlers

func (api *walletApi) myWallet(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	overview, err := api.svc.MyWallet(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "getting wallet overview")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *walletApi) myLedger(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	pagination := new(Pagination)
	pagination.Bind(ctx)

	entries, err := api.svc.MyLedger(
		ctx.Request().Context(), ctxUsr, ctx.QueryParam("org_id"), pagination.Limit, pagination.Offset)
	if err != nil {
		return errors.Wrap(err, "getting ledger")
	}
	if entries == nil {
		entries = []wallet.LedgerEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *walletApi) userBalances(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	overview, err := api.svc.UserBalances(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *walletApi) allocate(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data coin.Allocation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Allocation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	balance, err := api.svc.AllocateToUser(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, balance)
}

func (api *walletApi) fundOrg(ctx echo.Context) error {
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

	balance, err := api.svc.FundOrganization(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, balance)
}

func (api *walletApi) award(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data coin.Award
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Award")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	balance, err := api.svc.AwardQuestCompletion(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, balance)
}

func (api *walletApi) adjust(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data coin.Adjustment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Adjustment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	balance, err := api.svc.ManualAdjust(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, balance)
}
