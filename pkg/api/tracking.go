package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/store"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/scheduler"
)

// Tracker is the engine surface the handlers need.
type Tracker interface {
	ResolveIdentity(ctx context.Context, input string) (string, bool)
	Username(ctx context.Context, address string) (string, bool)
	GetPortfolio(ctx context.Context, address string) ([]portfolio.Position, error)
	Invalidate(ctx context.Context, address string)
	Probe(ctx context.Context, address string) tracker.ProbeReport
}

// StatusSource reports the sweep worker's state.
type StatusSource interface {
	Status() scheduler.Status
}

type TrackingHandler struct {
	Tracker   Tracker
	Store     store.Store
	Scheduler StatusSource
	Logger    *zap.Logger
}

func (h *TrackingHandler) Register(r *gin.Engine) {
	r.GET("/stats", h.stats)

	g := r.Group("/api")
	g.POST("/track", h.track)
	g.DELETE("/track", h.untrack)
	g.GET("/channels/:id/wallets", h.channelWallets)
	g.GET("/portfolio/:input", h.portfolio)
	g.GET("/debug/:input", h.debug)
}

type trackRequest struct {
	ChannelID string `json:"channelId" binding:"required"`
	Input     string `json:"input" binding:"required"`
}

type walletView struct {
	Address       string `json:"address"`
	Username      string `json:"username,omitempty"`
	LastCheckedAt any    `json:"lastCheckedAt,omitempty"`
}

func (h *TrackingHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// resolve writes a 404 and returns false when input names no wallet.
func (h *TrackingHandler) resolve(c *gin.Context, input string) (string, bool) {
	address, ok := h.Tracker.ResolveIdentity(c.Request.Context(), strings.TrimSpace(input))
	if !ok {
		Error(c, http.StatusNotFound, "could not resolve wallet", map[string]any{"input": input})
		return "", false
	}
	return address, true
}

func (h *TrackingHandler) stats(c *gin.Context) {
	st, err := h.Store.Stats(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	data := gin.H{"store": st}
	if h.Scheduler != nil {
		data["scheduler"] = h.Scheduler.Status()
	}
	Ok(c, data, nil)
}

func (h *TrackingHandler) track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	address, ok := h.resolve(c, req.Input)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	created, err := h.Store.Track(ctx, req.ChannelID, address)
	if err != nil {
		h.logger().Error("track failed", zap.String("wallet", address), zap.Error(err))
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	username, _ := h.Tracker.Username(ctx, address)
	view := gin.H{"address": address, "username": username, "channelId": req.ChannelID}
	if !created {
		Ok(c, view, map[string]any{"alreadyTracked": true})
		return
	}
	h.logger().Info("wallet tracked", zap.String("wallet", address), zap.String("channel", req.ChannelID))
	Created(c, view)
}

func (h *TrackingHandler) untrack(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	address, ok := h.resolve(c, req.Input)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	remaining, err := h.Store.Untrack(ctx, req.ChannelID, address)
	if errors.Is(err, store.ErrNotSubscribed) {
		Error(c, http.StatusNotFound, "channel is not tracking this wallet", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if remaining == 0 {
		h.Tracker.Invalidate(ctx, address)
	}
	h.logger().Info("wallet untracked",
		zap.String("wallet", address),
		zap.String("channel", req.ChannelID),
		zap.Int64("remaining", remaining),
	)
	Ok(c, gin.H{"address": address, "remainingSubscribers": remaining}, nil)
}

func (h *TrackingHandler) channelWallets(c *gin.Context) {
	ctx := c.Request.Context()
	wallets, err := h.Store.ListChannelWallets(ctx, c.Param("id"))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	out := make([]walletView, 0, len(wallets))
	for _, w := range wallets {
		v := walletView{Address: w.Address}
		if w.LastCheckedAt != nil {
			v.LastCheckedAt = w.LastCheckedAt.UTC()
		}
		if name, ok := h.Tracker.Username(ctx, w.Address); ok {
			v.Username = name
		}
		out = append(out, v)
	}
	Ok(c, out, map[string]any{"total": len(out)})
}

func (h *TrackingHandler) portfolio(c *gin.Context) {
	address, ok := h.resolve(c, c.Param("input"))
	if !ok {
		return
	}
	positions, err := h.Tracker.GetPortfolio(c.Request.Context(), address)
	if err != nil {
		Error(c, statusFor(err), err.Error(), map[string]any{"address": address})
		return
	}
	Ok(c, positions, map[string]any{
		"address": address,
		"summary": portfolio.Summarize(positions),
	})
}

func (h *TrackingHandler) debug(c *gin.Context) {
	address, ok := h.resolve(c, c.Param("input"))
	if !ok {
		return
	}
	report := h.Tracker.Probe(c.Request.Context(), address)
	Ok(c, report, nil)
}
