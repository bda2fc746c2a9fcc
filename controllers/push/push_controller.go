package controllers

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
)

type PushController struct {
	config *models.Config
	push   *services.PushManager
}

type subscribeRequest struct {
	Subscription json.RawMessage `json:"subscription"`
}

type VapidKeys struct {
	PublicKey string
}

// New creates an instance of the controller
func New(config *models.Config, push *services.PushManager) *PushController {
	return &PushController{config: config, push: push}
}

func (c *PushController) GetPushSubscriptionKey(w http.ResponseWriter, r *http.Request) {
	utils.JSONResponse(w, VapidKeys{PublicKey: c.push.PublicKey()}, http.StatusOK)
}

func (c *PushController) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	var request subscribeRequest
	if err := utils.DecodeJSON(w, r, c.config.MaxBodySize, &request); err != nil {
		utils.ErrorResponse(w, services.Unprocessable("Subscription data missing", err))
		return
	}
	if err := c.push.Subscribe(r.Context(), userID, request.Subscription); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.MessageResponse(w, "Push subscription saved", http.StatusCreated)
}

func (c *PushController) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	if err := c.push.Unsubscribe(r.Context(), userID); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.MessageResponse(w, "Push subscription removed", http.StatusOK)
}
