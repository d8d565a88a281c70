package cache

import (
	"context"
	"log/slog"

	"retailpos/backend/internal/events"
)

// Invalidator deletes the cached responses affected by an entity change.
type Invalidator struct {
	cache  ResponseCache
	logger *slog.Logger
}

func NewInvalidator(cache ResponseCache, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: cache, logger: logger}
}

func (i *Invalidator) Register(bus *events.Bus) {
	bus.Subscribe(i.Handle)
}

func (i *Invalidator) Handle(ctx context.Context, change events.Change) error {
	keys := KeysFor(change)
	if len(keys) == 0 {
		return nil
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		i.logger.Warn("cache invalidation failed", "kind", change.Kind, "id", change.ID, "error", err)
		return err
	}
	i.logger.Debug("cache invalidated", "kind", change.Kind, "id", change.ID, "keys", len(keys))
	return nil
}

// KeysFor derives the exact cache keys a change makes stale.
func KeysFor(change events.Change) []string {
	set := newKeySet()

	switch change.Kind {
	case events.KindProduct:
		set.addProduct(change.ID, change.Barcode)
		set.addReports(change.ActorID)

	case events.KindCustomer:
		set.add(CustomersListKey)
		for _, phone := range []string{change.Phone, change.PreviousPhone} {
			if phone == "" {
				continue
			}
			set.add(CustomerKey(phone), CustomerOrdersKey(phone), OrdersByPhoneKey(phone))
		}

	case events.KindOrder:
		set.add(OrderKey(change.ID))
		if change.Phone != "" {
			set.add(OrdersByPhoneKey(change.Phone), CustomerOrdersKey(change.Phone))
		}
		if change.EmployeeID != "" {
			set.add(EmployeeProfileKey(change.EmployeeID), AdminEmployeeProfileKey(change.EmployeeID))
		}
		for _, product := range change.Products {
			set.addProduct(product.ID, product.Barcode)
		}
		set.addReports(change.ActorID)

	case events.KindEmployee:
		set.add(EmployeesListKey, EmployeeProfileKey(change.ID), AdminEmployeeProfileKey(change.ID))

	case events.KindCategory:
		set.add(CategoriesListKey)
	}

	return set.keys
}

type keySet struct {
	seen map[string]struct{}
	keys []string
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]struct{}, 16)}
}

func (s *keySet) add(keys ...string) {
	for _, key := range keys {
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.keys = append(s.keys, key)
	}
}

func (s *keySet) addProduct(id, barcode string) {
	if id != "" {
		key := ProductKey(id)
		s.add(key, PublicView(key), ProductItemsKey(id))
	}
	if barcode != "" {
		key := ProductBarcodeKey(barcode)
		s.add(key, PublicView(key), ProductItemsBarcodeKey(barcode))
	}
}

func (s *keySet) addReports(userID string) {
	if userID == "" {
		return
	}
	s.add(ReportKeys(userID)...)
}
