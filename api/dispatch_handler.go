package api

import (
	"net/http"
	"time"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/id"
)

func (a *API) listScheduledDispatches(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, outbox.ErrValidation)
		return
	}

	dispatches, err := a.eng.Store().ListScheduledByUser(r.Context(), userID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatches)
}

func (a *API) listSentDispatches(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, outbox.ErrValidation)
		return
	}

	dispatches, err := a.eng.Store().ListSentByUser(r.Context(), userID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatches)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
