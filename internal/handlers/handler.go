package handlers

import (
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/monocle-dev/keywatch/internal/scheduler"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler serves the read-mostly audit API over monitors, checks and notifications
type Handler struct {
	repo      repository.Repository
	scheduler *scheduler.Scheduler
	hub       *Hub
}

func NewHandler(repo repository.Repository, sched *scheduler.Scheduler, hub *Hub) *Handler {
	return &Handler{repo: repo, scheduler: sched, hub: hub}
}
