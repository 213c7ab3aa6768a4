package web

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// pathID parses a positive integer path parameter. On failure it writes a
// validation error and returns false.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		fail(c, fmt.Errorf("%w: invalid %s", errBadRequest, name))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body into dst
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fail(c, fmt.Errorf("%w: %s must be an integer", errBadRequest, name))
		return 0, false
	}
	return n, true
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}

func queryTime(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		fail(c, fmt.Errorf("%w: %s must be an RFC 3339 time", errBadRequest, name))
		return time.Time{}, false
	}
	return t, true
}
