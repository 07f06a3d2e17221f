package http

import (
	"net/http"
	"strings"

	"recordproof/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	actorRoleHeader     = "X-Actor-Role"
	actorRoleContextKey = "actor_role"
)

// authorize asks the policy engine whether the caller role in the
// X-Actor-Role header may perform action. The header is trusted as is;
// authentication happens in front of this service.
func (s *Server) authorize(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(actorRoleHeader)))
		c.Set(actorRoleContextKey, role)
		if s.policy == nil {
			c.Next()
			return
		}
		decision, err := s.policy.Evaluate(c.Request.Context(), domain.PolicyInput{Action: action, Role: role})
		if err != nil {
			s.logger.Error("policy evaluation failed", zap.String("action", action), zap.Error(err))
			writeErrorCode(c, http.StatusInternalServerError, "POLICY_ERROR", "policy evaluation failed")
			c.Abort()
			return
		}
		if !decision.Allow {
			writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", decision.Reason)
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorRole(c *gin.Context) string {
	return c.GetString(actorRoleContextKey)
}
