package orders

import (
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/kvstore"
	"github.com/shopfront/storefront/pkg/logger"
)

// LogKey is the durable record holding the order log.
const LogKey = "shopfront_orders"

// orderLog reads and rewrites the whole order list on every append. Callers
// serialize access.
type orderLog struct {
	store kvstore.Store
	logg  *logger.Logger
}

// read returns the stored orders. Missing or malformed logs read as empty.
func (l *orderLog) read(ctx context.Context) ([]Order, error) {
	raw, err := l.store.Get(ctx, LogKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []Order{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "error reading order log")
	}
	var list []Order
	if err := json.Unmarshal(raw, &list); err != nil {
		l.logg.WarnErr(ctx, "discarding malformed order log", err)
		return []Order{}, nil
	}
	if list == nil {
		list = []Order{}
	}
	return list, nil
}

func (l *orderLog) append(ctx context.Context, order Order) error {
	list, err := l.read(ctx)
	if err != nil {
		return err
	}
	list = append(list, order)
	raw, err := json.Marshal(list)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "error encoding order log")
	}
	if err := l.store.Set(ctx, LogKey, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "error writing order log")
	}
	return nil
}

func (l *orderLog) lastID(list []Order) int64 {
	var last int64
	for _, o := range list {
		if o.ID > last {
			last = o.ID
		}
	}
	return last
}
