package monitor

import (
	"context"

	"github.com/mfreeman451/portalwatch/pkg/models"
	"github.com/mfreeman451/portalwatch/pkg/portal"
)

//go:generate mockgen -destination=mock_monitor.go -package=monitor github.com/mfreeman451/portalwatch/pkg/monitor SessionClient

// SessionClient is the portal session the monitor drives. *portal.Client
// implements it.
type SessionClient interface {
	CheckAuthenticated(ctx context.Context) (bool, error)
	Login(ctx context.Context, req portal.LoginRequest) (portal.Outcome, error)
	Logout(ctx context.Context) (portal.Outcome, error)
	State() models.AuthState
}

var _ SessionClient = (*portal.Client)(nil)
