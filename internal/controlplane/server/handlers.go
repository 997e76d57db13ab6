package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smsbot/gosms/internal/domain"
	"github.com/smsbot/gosms/internal/store"
)

type orderView struct {
	OrderID         string     `json:"order_id"`
	UserID          int64      `json:"user_id"`
	PhoneNumber     string     `json:"phone_number"`
	CountryCode     string     `json:"country_code"`
	ServiceID       string     `json:"service_id"`
	ServiceName     string     `json:"service_name"`
	Status          string     `json:"status"`
	Price           string     `json:"price"`
	ReceivedContent string     `json:"received_content,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func toOrderView(o *domain.Order) orderView {
	return orderView{
		OrderID:         o.OrderID,
		UserID:          o.UserID,
		PhoneNumber:     o.PhoneNumber,
		CountryCode:     o.CountryCode,
		ServiceID:       o.ServiceID,
		ServiceName:     o.ServiceName,
		Status:          string(o.Status),
		Price:           o.Price.StringFixed(2),
		ReceivedContent: o.ReceivedContent,
		CreatedAt:       o.CreatedAt,
		ExpiresAt:       o.ExpiresAt,
		CompletedAt:     o.CompletedAt,
	}
}

func toOrderViews(orders []*domain.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return out
}

func (s *Server) handleOrdersList(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	orders, err := s.st.ListOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

func (s *Server) handleActiveOrders(c *gin.Context) {
	orders, err := s.st.ListActiveOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	pending := make([]orderView, 0)
	expired := make([]orderView, 0)
	for _, o := range orders {
		if o.IsExpiredAt(now) {
			expired = append(expired, toOrderView(o))
		} else {
			pending = append(pending, toOrderView(o))
		}
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "awaiting_refund": expired})
}

func (s *Server) handleOrderGet(c *gin.Context) {
	o, err := s.st.GetOrder(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (s *Server) handleUserOrders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	orders, err := s.st.ListOrdersForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

func (s *Server) handleMonitorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": s.monitor.IsRunning()})
}

func (s *Server) handleSweeps(c *gin.Context) {
	audit := s.monitor.Audit()
	if audit == nil {
		c.JSON(http.StatusOK, gin.H{"sweeps": []any{}})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := audit.ListSweepRuns(c.Request.Context(), c.Query("monitor"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweeps": runs})
}
