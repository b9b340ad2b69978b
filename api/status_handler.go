package api

import (
	"net/http"
	"time"
)

type databaseStatus struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Database  databaseStatus `json:"database"`
	Queue     interface{}    `json:"queue"`
	Timestamp time.Time      `json:"timestamp"`
}

// status runs the database liveness probe and reports current queue
// depth by state.
func (a *API) status(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := a.eng.Store().Ping(r.Context()); err != nil {
		dbStatus = "unavailable"
	}

	metrics, err := a.eng.Queue().Metrics(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Database:  databaseStatus{Status: dbStatus},
		Queue:     metrics,
		Timestamp: time.Now().UTC(),
	})
}
