package cart

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// snapshot is the persisted shape of a cart. Attachments are deliberately
// absent: file state never reaches the backend.
type snapshot struct {
	Items []itemRecord `json:"items"`
}

type itemRecord struct {
	Key       string          `json:"key"`
	Type      ItemType        `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

func encodeSnapshot(items []LineItem) ([]byte, error) {
	records := make([]itemRecord, len(items))
	for i, li := range items {
		rec := itemRecord{
			Key:       li.Key,
			Type:      li.Type,
			ID:        li.ID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Qty:       li.Qty,
		}
		if li.Meta != nil {
			raw, err := json.Marshal(li.Meta)
			if err != nil {
				return nil, errors.Wrapf(err, "marshal meta for line %q", li.Key)
			}
			rec.Meta = raw
		}
		records[i] = rec
	}
	return json.Marshal(snapshot{Items: records})
}

func decodeSnapshot(payload []byte) ([]LineItem, error) {
	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart snapshot")
	}

	items := make([]LineItem, 0, len(snap.Items))
	for _, rec := range snap.Items {
		meta, err := decodeMeta(rec.Type, rec.Meta)
		if err != nil {
			return nil, errors.Wrapf(err, "line %q", rec.Key)
		}
		items = append(items, LineItem{
			Key:       rec.Key,
			Type:      rec.Type,
			ID:        rec.ID,
			Name:      rec.Name,
			UnitPrice: rec.UnitPrice,
			Qty:       rec.Qty,
			Meta:      meta,
		})
	}
	return items, nil
}

// decodeMeta dispatches on the line type tag to the matching meta shape.
func decodeMeta(t ItemType, raw json.RawMessage) (Meta, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	switch t {
	case TypeECoupon:
		var m ECouponMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode ecoupon meta")
		}
		return m, nil
	case TypePromoPackage:
		var m PromoMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode promo meta")
		}
		return m, nil
	case TypeProduct:
		var m ProductMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode product meta")
		}
		return m, nil
	case TypeAgencyPackage:
		var m AgencyMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, errors.Wrap(err, "decode agency meta")
		}
		return m, nil
	default:
		return nil, errors.Errorf("unknown item type %q", t)
	}
}
