package api

import (
	"context"
	"errors"
	"net/http"

	"QuantLab/internal/domain/models"
	xhttp "QuantLab/pkg/http"
)

// toAppError maps the analysis error taxonomy onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var (
		da *models.DataAbsentError
		ip *models.InvalidParameterError
		id *models.InsufficientDataError
		us *models.UndefinedStatisticError
	)
	switch {
	case errors.As(err, &da):
		return xhttp.NotFoundError(da.Error()).
			WithParam("symbol", da.Symbol).
			WithError(err)
	case errors.As(err, &ip):
		e := xhttp.BadRequestError(ip.Error()).WithError(err)
		e.Field = ip.Name
		return e
	case errors.As(err, &id):
		return xhttp.BadRequestError(id.Error()).
			WithParam("need", id.Need).
			WithParam("have", id.Have).
			WithError(err)
	case errors.As(err, &us):
		e := xhttp.UnprocessableError(us.Error()).WithError(err)
		e.Field = us.Name
		return e
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "analysis timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
