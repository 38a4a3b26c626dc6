package api

import (
	"github.com/mfreeman451/portalwatch/pkg/config"
	"github.com/mfreeman451/portalwatch/pkg/logsink"
	"github.com/mfreeman451/portalwatch/pkg/monitor"
)

//go:generate mockgen -destination=mock_api.go -package=api github.com/mfreeman451/portalwatch/pkg/api Controller,SettingsStore

// Controller is the part of *monitor.Monitor the API drives.
type Controller interface {
	Start()
	Stop()
	Running() bool
	Status() monitor.Status
}

// SettingsStore is the part of *config.Store the API drives.
type SettingsStore interface {
	Snapshot() config.Settings
	Update(next config.Settings) error
}

// LogSource is the part of *logsink.History the API reads.
type LogSource interface {
	Lines(limit int) []logsink.Line
	Subscribe(buffer int) (<-chan logsink.Line, func())
}

var (
	_ Controller    = (*monitor.Monitor)(nil)
	_ SettingsStore = (*config.Store)(nil)
	_ LogSource     = (*logsink.History)(nil)
)
