package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core/dispute"
)

type disputeApi struct {
	svc *dispute.Service
}

func registerDisputeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *dispute.Service) {
	api := disputeApi{svc: svc}

	dg := g.Group("/disputes", jwt)
	dg.POST("", api.submit)
	dg.GET("", api.query, adminMiddleware())
	dg.GET("/:id", api.retrieve)
	dg.POST("/:id/review", api.review, adminMiddleware())
}

// Handlers

func (api *disputeApi) submit(ctx echo.Context) error {
	var data dispute.NewDispute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDispute")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.SchoolID = claims.SchoolID
	data.SubjectID = claims.Subject

	d, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting dispute")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *disputeApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter dispute.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	ds, err := api.svc.Query(ctx.Request().Context(), claims.SchoolID, &filter, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying disputes")
	}
	return ctx.JSON(http.StatusOK, ds)
}

func (api *disputeApi) retrieve(ctx echo.Context) error {
	d, err := api.getCtxDispute(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *disputeApi) review(ctx echo.Context) error {
	d, err := api.getCtxDispute(ctx)
	if err != nil {
		return err
	}

	var data dispute.ReviewDispute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewDispute")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	data.ReviewerID = claims.Subject

	d, err = api.svc.Review(ctx.Request().Context(), d.ID, data)
	if err != nil {
		return errors.Wrap(err, "reviewing dispute")
	}
	return ctx.JSON(http.StatusOK, d)
}

// getCtxDispute loads the dispute in the URL and enforces school tenancy;
// non-admin callers can only see their own disputes.
func (api *disputeApi) getCtxDispute(ctx echo.Context) (dispute.Dispute, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return dispute.Dispute{}, errors.Wrap(err, "getting context claims")
	}

	d, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == dispute.ErrNotFound {
			return dispute.Dispute{}, errHttpNotFound
		}
		return dispute.Dispute{}, errors.Wrap(err, "getting dispute")
	}
	if d.SchoolID != claims.SchoolID {
		return dispute.Dispute{}, errHttpNotFound
	}
	if !claims.IsAdmin && d.SubjectID != claims.Subject {
		return dispute.Dispute{}, errHttpForbidden
	}
	return d, nil
}
