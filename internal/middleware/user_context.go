package middleware

import (
	"context"

	"work-platform/internal/auth"
	"work-platform/internal/logutils"
	"work-platform/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CurrentUserKey — ключ gin-контекста, под которым лежит *models.User.
const CurrentUserKey = "CurrentUser"

const (
	identityKey   = "identity"
	clientKey     = "client"
	contractorKey = "contractor"
)

// UserResolver — то, что InjectUser требует от auth.Resolver.
type UserResolver interface {
	Resolve(ctx context.Context, raw any) (*models.User, error)
}

// InjectUser кладёт в контекст пользователя из сессии. Если в куке id
// удалённого пользователя, сессия очищается, и запрос идёт дальше анонимно.
func InjectUser(r UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		raw := sess.Get(auth.SessionKey)
		if raw == nil {
			c.Next()
			return
		}

		user, err := r.Resolve(c.Request.Context(), raw)
		if err != nil {
			logutils.Log.WithError(err).Error("resolve session user")
			c.Next()
			return
		}
		if user == nil {
			sess.Clear()
			if err := sess.Save(); err != nil {
				logutils.Log.WithError(err).Warn("clear stale session")
			}
			c.Next()
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// CurrentUser возвращает вошедшего пользователя или nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CurrentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// CurrentIdentity доступен после RequireAuth, RequireClient или RequireContractor.
func CurrentIdentity(c *gin.Context) auth.Identity {
	id, _ := c.MustGet(identityKey).(auth.Identity)
	return id
}

// CurrentClient доступен только за RequireClient.
func CurrentClient(c *gin.Context) auth.Client {
	cl, _ := c.MustGet(clientKey).(auth.Client)
	return cl
}

// CurrentContractor доступен только за RequireContractor.
func CurrentContractor(c *gin.Context) auth.Contractor {
	k, _ := c.MustGet(contractorKey).(auth.Contractor)
	return k
}
