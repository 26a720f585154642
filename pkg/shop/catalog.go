package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

const maxItemIDLength = 64

// Validate checks the invariants every catalog item must satisfy.
func Validate(item *store.ShopItem) error {
	switch {
	case item.ID == "":
		return &ValidationError{Field: "id", Reason: "is required"}
	case len(item.ID) > maxItemIDLength:
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("must be at most %d characters", maxItemIDLength)}
	case strings.IndexFunc(item.ID, unicode.IsSpace) >= 0:
		return &ValidationError{Field: "id", Reason: "must not contain whitespace"}
	case strings.TrimSpace(item.Name) == "":
		return &ValidationError{Field: "name", Reason: "is required"}
	case strings.TrimSpace(item.Description) == "":
		return &ValidationError{Field: "description", Reason: "is required"}
	case !item.Type.Valid():
		return &ValidationError{Field: "item_type", Reason: fmt.Sprintf("%q is not a known item type", item.Type)}
	case item.CostPrimary == nil && item.CostPremium == nil:
		return &ValidationError{Field: "cost", Reason: "at least one price is required"}
	case item.CostPrimary != nil && *item.CostPrimary < 0:
		return &ValidationError{Field: "cost_primary", Reason: "must not be negative"}
	case item.CostPremium != nil && *item.CostPremium < 0:
		return &ValidationError{Field: "cost_premium", Reason: "must not be negative"}
	case item.Type == store.ItemTimedRole && item.RoleID == "":
		return &ValidationError{Field: "role_id_to_grant", Reason: "is required for timed roles"}
	case item.Type != store.ItemTimedRole && item.RoleID != "":
		return &ValidationError{Field: "role_id_to_grant", Reason: "is only allowed for timed roles"}
	case item.Stock < store.UnlimitedStock:
		return &ValidationError{Field: "stock", Reason: "must be -1 (unlimited) or not negative"}
	case item.DurationSeconds != nil && *item.DurationSeconds <= 0:
		return &ValidationError{Field: "duration_seconds", Reason: "must be positive when set"}
	}
	return nil
}

// GetItem returns the catalog item with the given id.
func (e *Engine) GetItem(ctx context.Context, itemID string) (*store.ShopItem, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("shop item %q: %w", itemID, err)
	}
	return item, nil
}

// ListItems returns the catalog sorted by id.
func (e *Engine) ListItems(ctx context.Context) ([]*store.ShopItem, error) {
	return e.store.ListItems(ctx)
}

// CreateItem adds a new item to the catalog. It fails with store.ErrConflict if the id is taken.
func (e *Engine) CreateItem(ctx context.Context, item *store.ShopItem) error {
	log.Trace("--> CreateItem")
	defer log.Trace("<-- CreateItem")

	if err := Validate(item); err != nil {
		return err
	}
	if err := e.store.InsertItem(ctx, item); err != nil {
		return fmt.Errorf("creating shop item %q: %w", item.ID, err)
	}
	log.WithField("item", item.ID).Info("shop item created")
	return nil
}

// UpdateItem replaces an existing catalog item. Items already bought are not affected.
func (e *Engine) UpdateItem(ctx context.Context, item *store.ShopItem) error {
	log.Trace("--> UpdateItem")
	defer log.Trace("<-- UpdateItem")

	if err := Validate(item); err != nil {
		return err
	}
	if err := e.store.ReplaceItem(ctx, item); err != nil {
		return fmt.Errorf("updating shop item %q: %w", item.ID, err)
	}
	log.WithField("item", item.ID).Info("shop item updated")
	return nil
}

// DeleteItem removes an item from the catalog. Possessions referring to it remain.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	log.Trace("--> DeleteItem")
	defer log.Trace("<-- DeleteItem")

	if err := e.store.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("deleting shop item %q: %w", itemID, err)
	}
	log.WithField("item", itemID).Info("shop item deleted")
	return nil
}

// Seed creates the given items that are not yet in the catalog. Existing items are left as
// they are, so edits made through the admin panel survive restarts.
func (e *Engine) Seed(ctx context.Context, items []store.ShopItem) error {
	log.Trace("--> Seed")
	defer log.Trace("<-- Seed")

	var errs []error
	created := 0
	for i := range items {
		err := e.CreateItem(ctx, &items[i])
		switch {
		case err == nil:
			created++
		case errors.Is(err, store.ErrConflict):
		default:
			errs = append(errs, err)
		}
	}
	log.WithFields(log.Fields{"created": created, "items": len(items)}).Debug("shop catalog seeded")
	return errors.Join(errs...)
}
