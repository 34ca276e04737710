package coupons

import (
	"context"
	"sort"

	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/storage"
)

// CouponsByStore groups coupons by store name.
func (s *Service) CouponsByStore(ctx context.Context) (map[string][]model.Coupon, error) {
	coupons, err := s.GetCoupons(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByStore(coupons), nil
}

// GroupByStore groups coupons by store. Within a store, coupons are ordered
// by expiry date with "No Expiry" last.
func GroupByStore(coupons []model.Coupon) map[string][]model.Coupon {
	groups := make(map[string][]model.Coupon)
	for _, c := range coupons {
		groups[c.Store] = append(groups[c.Store], c)
	}
	for _, list := range groups {
		SortByExpiry(list)
	}
	return groups
}

// SortByExpiry orders coupons soonest-expiring first; undated coupons go last.
func SortByExpiry(list []model.Coupon) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.HasExpiry() != b.HasExpiry() {
			return a.HasExpiry()
		}
		if a.ExpiryDate != b.ExpiryDate {
			return a.ExpiryDate < b.ExpiryDate
		}
		return a.Code < b.Code
	})
}

// StoreNames returns the keys of a grouping in name order.
func StoreNames(groups map[string][]model.Coupon) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reconcile repairs the store directory so it lists exactly the stores that
// coupons reference. Running it twice changes nothing the second time.
func (s *Service) Reconcile(ctx context.Context) (removed, added int, err error) {
	err = s.db.Batch(ctx, func(t *storage.Txn) error {
		var txErr error
		removed, added, txErr = reconcileTxn(t)
		return txErr
	})
	if err != nil {
		return 0, 0, err
	}
	if removed+added > 0 {
		logging.InfoContext(ctx, "store directory reconciled", "removed", removed, "added", added)
	}
	return removed, added, nil
}

// reconcileTxn adds missing entries for referenced stores and removes entries
// no coupon references.
func reconcileTxn(t *storage.Txn) (removed, added int, err error) {
	coupons, err := storage.ListTxn[model.Coupon](t, model.CollectionCoupons)
	if err != nil {
		return 0, 0, err
	}
	referenced := referencedStores(coupons)

	for name := range referenced {
		exists, err := t.Exists(model.CollectionStores, name)
		if err != nil {
			return 0, 0, err
		}
		if !exists {
			if err := t.Put(model.CollectionStores, name, model.Store{Name: name}); err != nil {
				return 0, 0, err
			}
			added++
		}
	}

	removed, err = pruneStores(t, referenced)
	return removed, added, err
}

// pruneStores removes every store entry whose name is not in keep.
func pruneStores(t *storage.Txn, keep map[string]bool) (int, error) {
	names, err := t.Keys(model.CollectionStores)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := t.Delete(model.CollectionStores, name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func referencedStores(coupons []model.Coupon) map[string]bool {
	set := make(map[string]bool, len(coupons))
	for _, c := range coupons {
		set[c.Store] = true
	}
	return set
}

func ensureStore(t *storage.Txn, name string) error {
	exists, err := t.Exists(model.CollectionStores, name)
	if err != nil || exists {
		return err
	}
	return t.Put(model.CollectionStores, name, model.Store{Name: name})
}

func removeStoreIfUnreferenced(t *storage.Txn, name string) error {
	coupons, err := storage.ListTxn[model.Coupon](t, model.CollectionCoupons)
	if err != nil {
		return err
	}
	for _, c := range coupons {
		if c.Store == name {
			return nil
		}
	}
	return t.Delete(model.CollectionStores, name)
}
