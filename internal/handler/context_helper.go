package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/internal/middleware"
	"github.com/noah-isme/primes-api/internal/models"
	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/isoweek"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}

// actorFromContext names the caller in audit logs.
func actorFromContext(c *gin.Context) string {
	return claimsFromContext(c).Actor()
}

// parseWeekQuery reads ?week=2024-W10, or ?year=2024&week=10.
func parseWeekQuery(c *gin.Context) (isoweek.WeekKey, error) {
	rawWeek := c.Query("week")
	rawYear := c.Query("year")
	if rawYear == "" {
		if rawWeek == "" {
			return isoweek.WeekKey{}, appErrors.Clone(appErrors.ErrInvalidArgument, "week is required")
		}
		key, err := isoweek.ParseWeekKey(rawWeek)
		if err != nil {
			return isoweek.WeekKey{}, appErrors.InvalidArgument(err, "invalid week, expected YYYY-Www")
		}
		return key, nil
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return isoweek.WeekKey{}, appErrors.InvalidArgument(err, "invalid year")
	}
	week, err := strconv.Atoi(rawWeek)
	if err != nil {
		return isoweek.WeekKey{}, appErrors.InvalidArgument(err, "invalid week")
	}
	key, err := isoweek.NewWeekKey(year, week)
	if err != nil {
		return isoweek.WeekKey{}, appErrors.InvalidArgument(err, "invalid ISO week")
	}
	return key, nil
}

func parseYearQuery(c *gin.Context) (int, error) {
	raw := c.Query("year")
	if raw == "" {
		return 0, appErrors.Clone(appErrors.ErrInvalidArgument, "year is required")
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.InvalidArgument(err, "invalid year")
	}
	return year, nil
}

func parseDateParam(raw, name string) (isoweek.Date, error) {
	if raw == "" {
		return isoweek.Date{}, appErrors.Clone(appErrors.ErrInvalidArgument, name+" is required")
	}
	d, err := isoweek.ParseDate(raw)
	if err != nil {
		return isoweek.Date{}, appErrors.InvalidArgument(err, "invalid "+name+", expected YYYY-MM-DD")
	}
	return d, nil
}
