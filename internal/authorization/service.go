package authorization

import (
	"context"

	"github.com/smallbiznis/lexcredit/internal/auditcontext"
)

// Service decides whether an actor may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, actor auditcontext.Actor, object string, action string) error
}
