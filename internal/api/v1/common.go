package v1

import (
	"time"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// parseAsOf reads the as_of query parameter as a date or an RFC 3339 timestamp,
// defaulting to now
func parseAsOf(c *gin.Context) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := types.ParseTime(raw)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHint("as_of must be a date (YYYY-MM-DD) or an RFC 3339 timestamp").
			WithReportableDetails(map[string]any{
				"as_of": raw,
			}).
			Mark(ierr.ErrValidation)
	}
	return t.UTC(), nil
}

func requireID(c *gin.Context, entity string) (string, bool) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewErrorf("invalid %s id", entity).
			WithHintf("A %s id is required", entity).
			Mark(ierr.ErrValidation))
		return "", false
	}
	return id, true
}
