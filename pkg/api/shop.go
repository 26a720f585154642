package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
)

func (s *Server) listItems(c *gin.Context) {
	items, err := s.services.Shop.ListItems(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) getItem(c *gin.Context) {
	item, err := s.services.Shop.GetItem(c.Request.Context(), c.Param("item"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type buyRequest struct {
	MemberID string         `json:"member_id" binding:"required"`
	Currency store.Currency `json:"currency"`
}

type buyResponse struct {
	Success bool `json:"success"`
	*shop.Settlement
	GrantError string `json:"grant_error,omitempty"`
}

func (s *Server) buyItem(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "member_id is required")
		return
	}
	var currency *store.Currency
	if req.Currency != "" {
		if !req.Currency.Valid() {
			badRequest(c, "currency must be primary or premium")
			return
		}
		currency = &req.Currency
	}
	settlement, err := s.services.Shop.Purchase(c.Request.Context(), s.opts.GuildID, req.MemberID, c.Param("item"), currency)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := buyResponse{Success: true, Settlement: settlement}
	if settlement.GrantError != nil {
		resp.GrantError = settlement.GrantError.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// bindItem decodes a new catalog item. Stock defaults to unlimited.
func bindItem(c *gin.Context) (*store.ShopItem, bool) {
	item := &store.ShopItem{Stock: store.UnlimitedStock}
	if err := c.ShouldBindJSON(item); err != nil {
		badRequest(c, "invalid shop item: "+err.Error())
		return nil, false
	}
	return item, true
}

func (s *Server) createItem(c *gin.Context) {
	item, ok := bindItem(c)
	if !ok {
		return
	}
	if err := s.services.Shop.CreateItem(c.Request.Context(), item); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// updateItem applies the body on top of the stored item, so fields left out keep their values.
func (s *Server) updateItem(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := s.services.Shop.GetItem(ctx, c.Param("item"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := c.ShouldBindJSON(item); err != nil {
		badRequest(c, "invalid shop item: "+err.Error())
		return
	}
	item.ID = c.Param("item")
	if err := s.services.Shop.UpdateItem(ctx, item); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) deleteItem(c *gin.Context) {
	if err := s.services.Shop.DeleteItem(c.Request.Context(), c.Param("item")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
