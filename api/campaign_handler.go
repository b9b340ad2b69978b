package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	outbox "github.com/garv190/outbox-email-project"
	"github.com/garv190/outbox-email-project/engine"
	"github.com/garv190/outbox-email-project/id"
)

type createCampaignRequest struct {
	UserID         string   `json:"userId"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Recipients     []string `json:"recipientEmails"`
	StartTime      string   `json:"startTime"`
	DelayBetweenMs *int     `json:"delayBetweenMs,omitempty"`
	HourlyLimit    *int     `json:"hourlyLimit,omitempty"`
}

type createCampaignResponse struct {
	Campaign      interface{} `json:"campaign"`
	DispatchCount int         `json:"dispatchCount"`
	TotalEmails   int         `json:"totalEmails"`
	Failed        int         `json:"failed"`
}

func (a *API) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorDetails(w, http.StatusBadRequest, outbox.ErrValidation, err.Error())
		return
	}

	startTime, err := parseTime(req.StartTime)
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, outbox.ErrValidation, "invalid startTime: "+err.Error())
		return
	}

	res, err := a.eng.CreateCampaign(r.Context(), engine.CreateCampaignRequest{
		UserID:         req.UserID,
		Subject:        req.Subject,
		Body:           req.Body,
		Recipients:     req.Recipients,
		StartTime:      startTime,
		DelayBetweenMs: req.DelayBetweenMs,
		HourlyLimit:    req.HourlyLimit,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createCampaignResponse{
		Campaign:      res.Campaign,
		DispatchCount: res.Created,
		TotalEmails:   res.Created + res.Failed,
		Failed:        res.Failed,
	})
}

func (a *API) listCampaigns(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, outbox.ErrValidation)
		return
	}

	campaigns, err := a.eng.Store().ListCampaignsByUser(r.Context(), userID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, campaigns)
}

func (a *API) listCampaignDispatches(w http.ResponseWriter, r *http.Request) {
	campaignID, err := id.ParseCampaignID(chi.URLParam(r, "campaignId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, outbox.ErrValidation)
		return
	}

	dispatches, err := a.eng.Store().ListByCampaign(r.Context(), campaignID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dispatches)
}

func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, outbox.ErrValidation), errors.Is(err, outbox.ErrNoNewDispatches):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, outbox.ErrCampaignNotFound), errors.Is(err, outbox.ErrDispatchNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
