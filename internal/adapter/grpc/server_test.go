package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/smartbasket/smartbasket-backend/internal/adapter/repository/memory"
	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/comparison"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/linkage"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/offering"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/pricing"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

type harness struct {
	conn    *grpc.ClientConn
	client  *BasketServiceClient
	markets *memory.MarketRepository
	items   *memory.ReferenceItemRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	markets := memory.NewMarketRepository(store)
	items := memory.NewReferenceItemRepository(store)
	offerings := memory.NewOfferingRepository(store)
	records := memory.NewPriceRecordRepository(store)
	log := logger.Discard()

	index := linkage.NewIndex(items, offerings, store, log)
	prices := pricing.NewPriceService(offerings, records, store, pricing.Options{}, log)
	offers := offering.NewOfferingService(markets, items, offerings, store, index, prices, false, log)
	compare := comparison.NewComparisonService(markets, items, offerings, "", 0, log)

	transport := NewTransport(NewServer(compare, prices, offers), log, true)
	lis := bufconn.Listen(1 << 20)
	go func() {
		_ = transport.Server.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		transport.Server.Stop()
	})

	return &harness{
		conn:    conn,
		client:  NewBasketServiceClient(conn),
		markets: markets,
		items:   items,
	}
}

func (h *harness) market(t *testing.T, name string) uuid.UUID {
	t.Helper()
	m := &domain.Market{ID: uuid.New(), Name: name, Active: true}
	require.NoError(t, h.markets.Create(context.Background(), m))
	return m.ID
}

func (h *harness) item(t *testing.T, name string) uuid.UUID {
	t.Helper()
	it := &domain.ReferenceItem{ID: uuid.New(), Name: name, Active: true, AvailableEverywhere: true}
	require.NoError(t, h.items.Create(context.Background(), it))
	return it.ID
}

func (h *harness) call(t *testing.T, method string, req map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	return h.client.Call(context.Background(), method, in)
}

func (h *harness) createOffering(t *testing.T, marketID, itemID uuid.UUID, price string) string {
	t.Helper()
	req := map[string]interface{}{
		"marketId":        marketID.String(),
		"referenceItemId": itemID.String(),
		"name":            "listing",
	}
	if price != "" {
		req["initialPrice"] = price
	}
	resp, err := h.call(t, MethodCreateOffering, req)
	require.NoError(t, err)
	return resp.GetFields()["id"].GetStringValue()
}

func TestServer_CompareBasket(t *testing.T) {
	// Setup
	h := newHarness(t)
	cheap := h.market(t, "Cheap Mart")
	dear := h.market(t, "Dear Mart")
	milk := h.item(t, "Milk 1L")
	bread := h.item(t, "Bread")

	h.createOffering(t, cheap, milk, "1.00")
	h.createOffering(t, cheap, bread, "0.50")
	h.createOffering(t, dear, milk, "2.00")
	h.createOffering(t, dear, bread, "1.00")

	// Execute
	resp, err := h.call(t, MethodCompareBasket, map[string]interface{}{
		"referenceItemIds": []interface{}{milk.String(), "not-a-uuid", bread.String()},
	})

	// Assert
	require.NoError(t, err)
	fields := resp.GetFields()
	assert.Len(t, fields["basketItems"].GetListValue().GetValues(), 2)
	assert.Equal(t, cheap.String(), fields["cheapestMarketId"].GetStringValue())
	assert.Equal(t, "Cheap Mart", fields["cheapestMarketName"].GetStringValue())
	assert.Equal(t, "1.5", fields["lowestTotal"].GetStringValue())
	assert.Equal(t, "3", fields["highestTotal"].GetStringValue())
	assert.Equal(t, "1.5", fields["potentialSavings"].GetStringValue())

	markets := fields["marketComparisons"].GetListValue().GetValues()
	require.Len(t, markets, 2)
	first := markets[0].GetStructValue().GetFields()
	assert.Equal(t, cheap.String(), first["marketId"].GetStringValue())
	assert.True(t, first["allItemsAvailable"].GetBoolValue())
	assert.Equal(t, float64(2), first["availableItemCount"].GetNumberValue())
}

func TestServer_CompareBasket_MissingItem(t *testing.T) {
	// Setup
	h := newHarness(t)
	m := h.market(t, "Corner Shop")
	milk := h.item(t, "Milk 1L")
	eggs := h.item(t, "Eggs")
	h.createOffering(t, m, milk, "1.20")
	h.createOffering(t, m, eggs, "")

	// Execute
	resp, err := h.call(t, MethodCompareBasket, map[string]interface{}{
		"referenceItemIds": []interface{}{milk.String(), eggs.String()},
	})

	// Assert
	require.NoError(t, err)
	fields := resp.GetFields()
	_, isNull := fields["cheapestMarketId"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)

	mc := fields["marketComparisons"].GetListValue().GetValues()[0].GetStructValue().GetFields()
	assert.False(t, mc["allItemsAvailable"].GetBoolValue())
	assert.Equal(t, "1.2", mc["totalPrice"].GetStringValue())
	missing := mc["missingItems"].GetListValue().GetValues()
	require.Len(t, missing, 1)
	assert.Equal(t, "Eggs", missing[0].GetStringValue())

	lines := mc["itemPrices"].GetListValue().GetValues()
	require.Len(t, lines, 2)
	eggsLine := lines[1].GetStructValue().GetFields()
	assert.False(t, eggsLine["available"].GetBoolValue())
	assert.Equal(t, "0", eggsLine["price"].GetStringValue())
	assert.Equal(t, "NO_PRICE", eggsLine["missingReason"].GetStringValue())
}

func TestServer_RecordPriceAndHistory(t *testing.T) {
	// Setup
	h := newHarness(t)
	offeringID := h.createOffering(t, h.market(t, "Mart"), h.item(t, "Rice"), "3.00")

	// Execute
	rec, err := h.call(t, MethodRecordPrice, map[string]interface{}{
		"offeringId":    offeringID,
		"price":         2.5,
		"originalPrice": "3.00",
		"isPromotion":   true,
	})
	require.NoError(t, err)

	history, err := h.call(t, MethodGetPriceHistory, map[string]interface{}{"offeringId": offeringID})
	require.NoError(t, err)

	got, err := h.call(t, MethodGetOffering, map[string]interface{}{"offeringId": offeringID})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "2.5", rec.GetFields()["price"].GetStringValue())
	assert.Equal(t, domain.DefaultCurrency, rec.GetFields()["currency"].GetStringValue())

	records := history.GetFields()["records"].GetListValue().GetValues()
	require.Len(t, records, 2)
	assert.Equal(t, "2.5", records[0].GetStructValue().GetFields()["price"].GetStringValue())
	assert.Equal(t, "3", records[1].GetStructValue().GetFields()["price"].GetStringValue())

	o := got.GetFields()
	assert.Equal(t, "2.5", o["currentPrice"].GetStringValue())
	assert.True(t, o["isPromotion"].GetBoolValue())
	discount, err := decimal.NewFromString(o["discountPercentage"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, "16.67", discount.StringFixed(2))
}

func TestServer_BatchRecordPrice(t *testing.T) {
	// Setup
	h := newHarness(t)
	offeringID := h.createOffering(t, h.market(t, "Mart"), h.item(t, "Tea"), "")

	// Execute
	resp, err := h.call(t, MethodBatchRecordPrice, map[string]interface{}{
		"entries": []interface{}{
			map[string]interface{}{"offeringId": offeringID, "price": "4.10"},
			map[string]interface{}{"offeringId": uuid.NewString(), "price": "1.00"},
		},
	})

	// Assert
	require.NoError(t, err)
	fields := resp.GetFields()
	assert.Equal(t, float64(2), fields["totalRequested"].GetNumberValue())
	assert.Equal(t, float64(1), fields["successCount"].GetNumberValue())
	assert.Equal(t, float64(1), fields["failureCount"].GetNumberValue())

	results := fields["results"].GetListValue().GetValues()
	require.Len(t, results, 2)
	ok := results[0].GetStructValue().GetFields()
	assert.True(t, ok["success"].GetBoolValue())
	assert.Equal(t, "4.1", ok["newPrice"].GetStringValue())
	failed := results[1].GetStructValue().GetFields()
	assert.False(t, failed["success"].GetBoolValue())
	assert.NotEmpty(t, failed["message"].GetStringValue())
}

func TestServer_DeleteOffering(t *testing.T) {
	// Setup
	h := newHarness(t)
	offeringID := h.createOffering(t, h.market(t, "Mart"), h.item(t, "Salt"), "0.40")

	// Execute
	first, err := h.call(t, MethodDeleteOffering, map[string]interface{}{"offeringId": offeringID})
	require.NoError(t, err)
	second, err := h.call(t, MethodDeleteOffering, map[string]interface{}{"offeringId": offeringID})
	require.NoError(t, err)

	// Assert
	assert.True(t, first.GetFields()["deleted"].GetBoolValue())
	assert.False(t, second.GetFields()["deleted"].GetBoolValue())

	_, err = h.call(t, MethodGetOffering, map[string]interface{}{"offeringId": offeringID})
	assert.Equal(t, codes.NotFound, status.Code(err))

	history, err := h.call(t, MethodGetPriceHistory, map[string]interface{}{"offeringId": offeringID})
	require.NoError(t, err)
	assert.Len(t, history.GetFields()["records"].GetListValue().GetValues(), 1)
}

func TestServer_ListOfferings(t *testing.T) {
	// Setup
	h := newHarness(t)
	mart := h.market(t, "Mart")
	other := h.market(t, "Other Mart")
	milk := h.item(t, "Milk 1L")
	bread := h.item(t, "Bread")
	milkAtMart := h.createOffering(t, mart, milk, "1.00")
	breadAtMart := h.createOffering(t, mart, bread, "")
	milkAtOther := h.createOffering(t, other, milk, "1.10")

	ids := func(resp *structpb.Struct) []string {
		var out []string
		for _, v := range resp.GetFields()["offerings"].GetListValue().GetValues() {
			out = append(out, v.GetStructValue().GetFields()["id"].GetStringValue())
		}
		return out
	}

	// Execute
	byMarket, err := h.call(t, MethodListOfferingsByMarket, map[string]interface{}{"marketId": mart.String()})
	require.NoError(t, err)
	byItem, err := h.call(t, MethodListOfferingsByReferenceItem, map[string]interface{}{"referenceItemId": milk.String()})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, []string{milkAtMart, breadAtMart}, ids(byMarket))
	assert.Equal(t, []string{milkAtMart, milkAtOther}, ids(byItem))

	_, err = h.call(t, MethodListOfferingsByMarket, map[string]interface{}{"marketId": uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.call(t, MethodListOfferingsByReferenceItem, map[string]interface{}{"referenceItemId": "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_ErrorCodes(t *testing.T) {
	h := newHarness(t)
	marketID := h.market(t, "Mart")
	itemID := h.item(t, "Oil")
	offeringID := h.createOffering(t, marketID, itemID, "")

	tests := []struct {
		name         string
		method       string
		req          map[string]interface{}
		expectedCode codes.Code
	}{
		{
			name:         "Unknown offering",
			method:       MethodGetOffering,
			req:          map[string]interface{}{"offeringId": uuid.NewString()},
			expectedCode: codes.NotFound,
		},
		{
			name:         "Malformed offering id",
			method:       MethodGetOffering,
			req:          map[string]interface{}{"offeringId": "abc"},
			expectedCode: codes.InvalidArgument,
		},
		{
			name:   "Offering at unknown market",
			method: MethodCreateOffering,
			req: map[string]interface{}{
				"marketId":        uuid.NewString(),
				"referenceItemId": itemID.String(),
				"name":            "x",
			},
			expectedCode: codes.NotFound,
		},
		{
			name:         "Negative price",
			method:       MethodRecordPrice,
			req:          map[string]interface{}{"offeringId": offeringID, "price": "-1"},
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "Missing price",
			method:       MethodRecordPrice,
			req:          map[string]interface{}{"offeringId": offeringID},
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "Price is not a number",
			method:       MethodRecordPrice,
			req:          map[string]interface{}{"offeringId": offeringID, "price": true},
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "Malformed batch entry",
			method:       MethodBatchRecordPrice,
			req:          map[string]interface{}{"entries": []interface{}{"oops"}},
			expectedCode: codes.InvalidArgument,
		},
		{
			name:         "Basket ids not a list",
			method:       MethodCompareBasket,
			req:          map[string]interface{}{"referenceItemIds": "x"},
			expectedCode: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.call(t, tt.method, tt.req)
			assert.Equal(t, tt.expectedCode, status.Code(err))
		})
	}
}

func TestServer_Health(t *testing.T) {
	h := newHarness(t)

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})

	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode codes.Code
	}{
		{"Nil", nil, codes.OK},
		{"Not found", domain.NewNotFound(domain.KindOffering, uuid.New()), codes.NotFound},
		{"Validation", domain.ErrValidation, codes.InvalidArgument},
		{"Conflict", domain.ErrConflict, codes.AlreadyExists},
		{"Cancelled", context.Canceled, codes.Canceled},
		{"Status kept", status.Error(codes.Unavailable, "x"), codes.Unavailable},
		{"Unknown", errors.New("disk on fire"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, status.Code(mapError(tt.err)))
		})
	}
}
