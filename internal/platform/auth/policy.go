package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

// Roles.
const (
	RoleParent = "parent"
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

// ValidRole reports whether r names one of the three roles.
func ValidRole(r string) bool {
	return r == RoleParent || r == RoleDoctor || r == RoleAdmin
}

// Operation names one guarded entry point.
type Operation string

const (
	OpViewProfile    Operation = "profile.view"
	OpSubmitFeedback Operation = "feedback.submit"

	OpManageChildren  Operation = "child.manage"
	OpRequestSchedule Operation = "schedule.request"
	OpListOwnSchedule Operation = "schedule.list_own"
	OpCancelSchedule  Operation = "schedule.cancel"
	OpParentDashboard Operation = "dashboard.parent"

	OpListDoctorSchedule Operation = "schedule.list_doctor"
	OpCompleteSchedule   Operation = "schedule.complete"

	OpReviewSchedule      Operation = "schedule.review"
	OpDeleteSchedule      Operation = "schedule.delete"
	OpListPendingSchedule Operation = "schedule.list_pending"
	OpListAllSchedules    Operation = "schedule.list_all"
	OpManageUsers         Operation = "user.manage"
	OpManageReference     Operation = "reference.manage"
	OpReadFeedback        Operation = "feedback.read"
)

// Policy maps each operation to the roles allowed to invoke it. Operations
// absent from the map are denied to everyone.
type Policy map[Operation][]string

// DefaultPolicy is the role matrix enforced by the server. Admins are not
// implicitly granted parent or doctor operations.
func DefaultPolicy() Policy {
	return Policy{
		OpViewProfile:    {RoleParent, RoleDoctor, RoleAdmin},
		OpSubmitFeedback: {RoleParent, RoleDoctor, RoleAdmin},

		OpManageChildren:  {RoleParent},
		OpRequestSchedule: {RoleParent},
		OpListOwnSchedule: {RoleParent},
		OpCancelSchedule:  {RoleParent},
		OpParentDashboard: {RoleParent},

		OpListDoctorSchedule: {RoleDoctor},
		OpCompleteSchedule:   {RoleDoctor},

		OpReviewSchedule:      {RoleAdmin},
		OpDeleteSchedule:      {RoleAdmin},
		OpListPendingSchedule: {RoleAdmin},
		OpListAllSchedules:    {RoleAdmin},
		OpManageUsers:         {RoleAdmin},
		OpManageReference:     {RoleAdmin},
		OpReadFeedback:        {RoleAdmin},
	}
}

// Allows reports whether role may invoke op.
func (p Policy) Allows(role string, op Operation) bool {
	for _, r := range p[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns middleware that rejects callers whose role may not
// invoke op. It must run after JWTMiddleware.
func Authorize(p Policy, op Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.Allows(RoleFromContext(c.Request().Context()), op) {
				return apperr.Forbidden("Access Denied.")
			}
			return next(c)
		}
	}
}
