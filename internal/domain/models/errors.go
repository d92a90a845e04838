package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDataAbsent         = errors.New("data absent")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrUndefinedStatistic = errors.New("undefined statistic")
)

// DataAbsentError is returned when a provider has zero bars for a request.
type DataAbsentError struct {
	Symbol string
	From   time.Time
	To     time.Time
}

func (e *DataAbsentError) Error() string {
	return fmt.Sprintf("no data for %s between %s and %s",
		e.Symbol, e.From.Format(DateLayout), e.To.Format(DateLayout))
}

func (e *DataAbsentError) Unwrap() error { return ErrDataAbsent }

// InsufficientDataError reports fewer observations than a computation needs.
type InsufficientDataError struct {
	What string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need at least %d observations, have %d", e.What, e.Need, e.Have)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// InvalidParameterError reports an out-of-range or malformed input value.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// UndefinedStatisticError reports a statistic that evaluated to NaN or Inf.
type UndefinedStatisticError struct {
	Name   string
	Reason string
}

func (e *UndefinedStatisticError) Error() string {
	return fmt.Sprintf("%s is undefined: %s", e.Name, e.Reason)
}

func (e *UndefinedStatisticError) Unwrap() error { return ErrUndefinedStatistic }

// ErrorKind classifies err into a short label for metrics and job results.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataAbsent):
		return "data_absent"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrUndefinedStatistic):
		return "undefined_statistic"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "internal"
	}
}
