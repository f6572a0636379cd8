package worker

import (
	"github.com/opsline/helpdesk-core/internal/service"
)

// StartEventWorker registers the event log handlers.
func StartEventWorker(eventLog *service.EventLogService) {
	if eventLog == nil {
		return
	}
	eventLog.RegisterHandlers()
}
