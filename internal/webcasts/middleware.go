package webcasts

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/webcast/internal/middleware"
	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/pkg/response"
)

const (
	// ContextCourseModule is the context key for the resolved *models.CourseModuleRef.
	ContextCourseModule = "course_module"
	// ContextCanViewIdentity is the context key for the identity-field capability.
	ContextCanViewIdentity = "can_view_identity"
)

// Lookup is the repository surface the middleware needs.
type Lookup interface {
	GetByCourseModule(ctx context.Context, cmid int64) (*models.CourseModuleRef, error)
	CourseRoles(ctx context.Context, courseID, userID int64) ([]string, error)
}

var (
	reportRoles = map[string]bool{
		models.CourseRoleManager:        true,
		models.CourseRoleEditingTeacher: true,
		models.CourseRoleTeacher:        true,
	}
	identityRoles = map[string]bool{
		models.CourseRoleManager:        true,
		models.CourseRoleEditingTeacher: true,
	}
)

// courseModuleID reads the module id from :cmid or ?id=.
func courseModuleID(c *gin.Context) (int64, bool) {
	raw := c.Param("cmid")
	if raw == "" {
		raw = c.Query("id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

// ResolveCourseModule loads the course module named by the request. Call after JWT.
func ResolveCourseModule(repo Lookup, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		cmid, ok := courseModuleID(c)
		if !ok {
			response.BadRequest(c, "invalid course module id")
			c.Abort()
			return
		}
		ref, err := repo.GetByCourseModule(c.Request.Context(), cmid)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "course module not found")
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("resolve course module", zap.Int64("cmid", cmid), zap.Error(err))
			response.Internal(c, "failed to load course module")
			c.Abort()
			return
		}
		c.Set(ContextCourseModule, ref)
		c.Next()
	}
}

// RequireManager allows site admins and users holding a teaching or managing
// role in the webcast's course. Call after ResolveCourseModule.
func RequireManager(repo Lookup, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		ref, ok := CourseModule(c)
		if !ok {
			response.Internal(c, "course module not resolved")
			c.Abort()
			return
		}
		if middleware.IsAdmin(c) {
			c.Set(ContextCanViewIdentity, true)
			c.Next()
			return
		}
		userID := middleware.UserID(c)
		roles, err := repo.CourseRoles(c.Request.Context(), ref.Webcast.Course, userID)
		if err != nil {
			logger.Error("course roles", zap.Int64("course_id", ref.Webcast.Course), zap.Int64("user_id", userID), zap.Error(err))
			response.Internal(c, "failed to check permissions")
			c.Abort()
			return
		}
		allowed, identity := false, false
		for _, r := range roles {
			allowed = allowed || reportRoles[r]
			identity = identity || identityRoles[r]
		}
		if !allowed {
			response.Forbidden(c, "not authorized for this webcast")
			c.Abort()
			return
		}
		c.Set(ContextCanViewIdentity, identity)
		c.Next()
	}
}

// CourseModule returns the module stored by ResolveCourseModule.
func CourseModule(c *gin.Context) (*models.CourseModuleRef, bool) {
	v, ok := c.Get(ContextCourseModule)
	if !ok {
		return nil, false
	}
	ref, ok := v.(*models.CourseModuleRef)
	return ref, ok && ref != nil
}

// CanViewIdentity reports whether RequireManager granted identity fields.
func CanViewIdentity(c *gin.Context) bool {
	return c.GetBool(ContextCanViewIdentity)
}
