package controllers

import (
	"net/http"

	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
)

type FollowController struct {
	config  *models.Config
	follows *services.FollowManager
}

type followRequest struct {
	UserID string `json:"userId"`
}

type followDecision struct {
	FollowID string `json:"followId"`
}

// New creates an instance of the controller
func New(config *models.Config, follows *services.FollowManager) *FollowController {
	return &FollowController{config: config, follows: follows}
}

func (c *FollowController) RequestFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	var request followRequest
	if err := utils.DecodeJSON(w, r, c.config.MaxBodySize, &request); err != nil {
		utils.ErrorResponse(w, services.InvalidInput("Invalid user id"))
		return
	}
	if _, err := c.follows.RequestFollow(r.Context(), userID, request.UserID); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.MessageResponse(w, "Follow request sent", http.StatusCreated)
}

func (c *FollowController) GetFollowRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	requests, err := c.follows.GetFollowRequests(r.Context(), userID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"requests": requests}, http.StatusOK)
}

func (c *FollowController) AcceptFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	var decision followDecision
	if err := utils.DecodeJSON(w, r, c.config.MaxBodySize, &decision); err != nil {
		utils.ErrorResponse(w, services.NotFound("Follow request not found"))
		return
	}
	if _, err := c.follows.AcceptFollow(r.Context(), decision.FollowID, userID); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.MessageResponse(w, "Follow request accepted", http.StatusOK)
}

func (c *FollowController) RejectFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	var decision followDecision
	if err := utils.DecodeJSON(w, r, c.config.MaxBodySize, &decision); err != nil {
		utils.ErrorResponse(w, services.NotFound("Follow request not found"))
		return
	}
	if err := c.follows.RejectFollow(r.Context(), decision.FollowID, userID); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.MessageResponse(w, "Follow request rejected", http.StatusOK)
}
