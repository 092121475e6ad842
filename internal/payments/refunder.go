package payments

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
)

// LateBoundRefunder breaks the construction cycle between the order and
// payment services: orders is built against this placeholder, and the real
// payment service is bound once it exists.
type LateBoundRefunder struct {
	mu     sync.RWMutex
	target Service
}

func (r *LateBoundRefunder) Bind(target Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

func (r *LateBoundRefunder) MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()

	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "payment service not bound")
	}
	return target.MarkRefunded(ctx, tx, orderID)
}
