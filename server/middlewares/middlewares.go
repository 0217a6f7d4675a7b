package middlewares

import (
	"net/http"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/utils"
	"github.com/gin-gonic/gin"
)

const (
	// UserHeader carries the caller's user id, set by the auth proxy in front
	// of the api server.
	UserHeader    = "sub"
	UserQuery     = "user_id"
	DefaultUserId = "default_user"
)

var keyParser = utils.NewRedisKeyParser(utils.DefaultRedisKeyDelimiter)

// UserIdentity resolves the caller's user id from the "sub" header, then the
// "user_id" query parameter, then falls back to the default user. The
// resolved id is written back to the "sub" header for handlers to read. Ids
// that cannot be used as a cache key segment are rejected.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.Request.Header.Get(UserHeader)
		if userId == "" {
			userId = c.Query(UserQuery)
		}
		if userId == "" {
			userId = DefaultUserId
		}

		if !keyParser.ValidateId(userId) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code": apperr.CodeInvalidArgument,
				"msg":  "invalid user id",
			})
			c.Abort()
			return
		}

		c.Request.Header.Set(UserHeader, userId)
		c.Next()
	}
}

// UserId returns the id resolved by UserIdentity.
func UserId(c *gin.Context) string {
	return c.Request.Header.Get(UserHeader)
}
