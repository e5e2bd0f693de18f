package grpc

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
)

// Request readers. Absent fields read as zero values; present fields of the
// wrong shape are rejected with InvalidArgument.

func field(req *structpb.Struct, key string) (*structpb.Value, bool) {
	if req == nil {
		return nil, false
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func stringField(req *structpb.Struct, key string) (string, error) {
	v, ok := field(req, key)
	if !ok {
		return "", nil
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
	return s.StringValue, nil
}

func boolField(req *structpb.Struct, key string) (bool, error) {
	v, ok := field(req, key)
	if !ok {
		return false, nil
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, status.Errorf(codes.InvalidArgument, "%s must be a boolean", key)
	}
	return b.BoolValue, nil
}

func uuidField(req *structpb.Struct, key string) (uuid.UUID, error) {
	raw, err := stringField(req, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
	}
	return id, nil
}

// decimalField accepts a decimal string or a JSON number.
func decimalField(req *structpb.Struct, key string) (decimal.NullDecimal, error) {
	v, ok := field(req, key)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(k.StringValue)
		if err != nil {
			return decimal.NullDecimal{}, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
		}
		return decimal.NewNullDecimal(d), nil
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return decimal.NullDecimal{}, status.Errorf(codes.InvalidArgument, "%s must be a finite number", key)
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(k.NumberValue)), nil
	default:
		return decimal.NullDecimal{}, status.Errorf(codes.InvalidArgument, "%s must be a decimal string or number", key)
	}
}

func stringListField(req *structpb.Struct, key string) ([]string, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a list", key)
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		s, isString := item.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return nil, status.Errorf(codes.InvalidArgument, "%s must contain only strings", key)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

func structListField(req *structpb.Struct, key string) ([]*structpb.Struct, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a list", key)
	}
	out := make([]*structpb.Struct, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		s := item.GetStructValue()
		if s == nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d] must be an object", key, i)
		}
		out = append(out, s)
	}
	return out, nil
}

// Response writers. structpb.NewStruct only understands plain Go values, so
// every slice is built as []interface{}.

func toStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

func nullDecimalValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func timeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringsValue(ss []string) []interface{} {
	out := make([]interface{}, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func offeringValue(o *domain.Offering) map[string]interface{} {
	created := o.CreatedAt
	return map[string]interface{}{
		"id":                 o.ID.String(),
		"marketId":           o.MarketID.String(),
		"referenceItemId":    o.ReferenceItemID.String(),
		"name":               o.Name,
		"brand":              o.Brand,
		"barcode":            o.Barcode,
		"images":             stringsValue(o.Images),
		"currentPrice":       nullDecimalValue(o.CurrentPrice),
		"originalPrice":      nullDecimalValue(o.OriginalPrice),
		"currency":           o.Currency,
		"isPromotion":        o.IsPromotion,
		"lastPriceUpdate":    timeValue(o.LastPriceUpdate),
		"discountPercentage": nullDecimalValue(o.DiscountPercentage()),
		"createdAt":          timeValue(&created),
	}
}

func priceRecordValue(rec *domain.PriceRecord) map[string]interface{} {
	ts := rec.Timestamp
	return map[string]interface{}{
		"id":            rec.ID.String(),
		"offeringId":    rec.OfferingID.String(),
		"price":         rec.Price.String(),
		"originalPrice": nullDecimalValue(rec.OriginalPrice),
		"currency":      rec.Currency,
		"isPromotion":   rec.IsPromotion,
		"timestamp":     timeValue(&ts),
	}
}

func itemPriceValue(line domain.ItemPrice) map[string]interface{} {
	var offeringID interface{}
	if line.OfferingID != nil {
		offeringID = line.OfferingID.String()
	}
	return map[string]interface{}{
		"referenceItemId":   line.ReferenceItemID.String(),
		"referenceItemName": line.ReferenceItemName,
		"offeringId":        offeringID,
		"offeringName":      line.OfferingName,
		"brand":             line.Brand,
		"price":             line.Price.String(),
		"currency":          line.Currency,
		"isPromotion":       line.IsPromotion,
		"available":         line.Available,
		"missingReason":     string(line.MissingReason),
	}
}

func comparisonValue(res *domain.ComparisonResult) map[string]interface{} {
	items := make([]interface{}, 0, len(res.BasketItems))
	for _, it := range res.BasketItems {
		items = append(items, map[string]interface{}{
			"referenceItemId": it.ReferenceItemID.String(),
			"name":            it.Name,
			"category":        it.Category,
		})
	}

	markets := make([]interface{}, 0, len(res.MarketComparisons))
	for _, mc := range res.MarketComparisons {
		lines := make([]interface{}, 0, len(mc.ItemPrices))
		for _, line := range mc.ItemPrices {
			lines = append(lines, itemPriceValue(line))
		}
		markets = append(markets, map[string]interface{}{
			"marketId":           mc.MarketID.String(),
			"marketName":         mc.MarketName,
			"marketLogoUrl":      mc.MarketLogoURL,
			"totalPrice":         mc.TotalPrice.String(),
			"currency":           mc.Currency,
			"allItemsAvailable":  mc.AllItemsAvailable,
			"itemPrices":         lines,
			"missingItems":       stringsValue(mc.MissingItems),
			"availableItemCount": mc.AvailableItemCount,
			"totalItemCount":     mc.TotalItemCount,
		})
	}

	var cheapestID interface{}
	if res.CheapestMarketID != nil {
		cheapestID = res.CheapestMarketID.String()
	}
	return map[string]interface{}{
		"basketItems":        items,
		"marketComparisons":  markets,
		"cheapestMarketId":   cheapestID,
		"cheapestMarketName": res.CheapestMarketName,
		"lowestTotal":        res.LowestTotal.String(),
		"highestTotal":       res.HighestTotal.String(),
		"potentialSavings":   res.PotentialSavings.String(),
	}
}
