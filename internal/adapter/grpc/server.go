package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/smartbasket/smartbasket-backend/internal/domain"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/comparison"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/offering"
	"github.com/smartbasket/smartbasket-backend/internal/usecase/pricing"
)

// Server implements the BasketService gRPC server
type Server struct {
	ComparisonService *comparison.ComparisonService
	PriceService      *pricing.PriceService
	OfferingService   *offering.OfferingService
}

var _ BasketServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(
	comparisonService *comparison.ComparisonService,
	priceService *pricing.PriceService,
	offeringService *offering.OfferingService,
) *Server {
	return &Server{
		ComparisonService: comparisonService,
		PriceService:      priceService,
		OfferingService:   offeringService,
	}
}

// CompareBasket handles the CompareBasket RPC.
// Ids that do not parse are dropped, the same way unknown ids are.
func (s *Server) CompareBasket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := stringListField(req, "referenceItemIds")
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	result, err := s.ComparisonService.CompareBasket(ctx, ids)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(comparisonValue(result))
}

// RecordPrice handles the RecordPrice RPC
func (s *Server) RecordPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input, err := priceInput(req)
	if err != nil {
		return nil, err
	}

	rec, err := s.PriceService.RecordPrice(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(priceRecordValue(rec))
}

// BatchRecordPrice handles the BatchRecordPrice RPC.
// A malformed entry rejects the whole request; failures inside the ledger are reported per entry.
func (s *Server) BatchRecordPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rawEntries, err := structListField(req, "entries")
	if err != nil {
		return nil, err
	}

	entries := make([]pricing.PriceEntry, 0, len(rawEntries))
	for i, raw := range rawEntries {
		entry, err := priceInput(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "entries[%d]: %s", i, status.Convert(err).Message())
		}
		entries = append(entries, entry)
	}

	batch := s.PriceService.BatchRecordPrice(ctx, entries)

	results := make([]interface{}, 0, len(batch.Results))
	for _, r := range batch.Results {
		results = append(results, map[string]interface{}{
			"offeringId": r.OfferingID.String(),
			"success":    r.Success,
			"message":    r.Message,
			"newPrice":   nullDecimalValue(r.NewPrice),
		})
	}
	return toStruct(map[string]interface{}{
		"totalRequested": batch.TotalRequested,
		"successCount":   batch.SuccessCount,
		"failureCount":   batch.FailureCount,
		"results":        results,
	})
}

// GetPriceHistory handles the GetPriceHistory RPC
func (s *Server) GetPriceHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	offeringID, err := uuidField(req, "offeringId")
	if err != nil {
		return nil, err
	}

	history, err := s.PriceService.GetPriceHistory(ctx, offeringID)
	if err != nil {
		return nil, mapError(err)
	}

	records := make([]interface{}, 0, len(history))
	for _, rec := range history {
		records = append(records, priceRecordValue(rec))
	}
	return toStruct(map[string]interface{}{"records": records})
}

// CreateOffering handles the CreateOffering RPC
func (s *Server) CreateOffering(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		input offering.CreateOfferingInput
		err   error
	)
	if input.MarketID, err = uuidField(req, "marketId"); err != nil {
		return nil, err
	}
	if input.ReferenceItemID, err = uuidField(req, "referenceItemId"); err != nil {
		return nil, err
	}
	if input.Name, err = stringField(req, "name"); err != nil {
		return nil, err
	}
	if input.Brand, err = stringField(req, "brand"); err != nil {
		return nil, err
	}
	if input.Barcode, err = stringField(req, "barcode"); err != nil {
		return nil, err
	}
	if input.Images, err = stringListField(req, "images"); err != nil {
		return nil, err
	}
	if input.InitialPrice, err = decimalField(req, "initialPrice"); err != nil {
		return nil, err
	}
	if input.OriginalPrice, err = decimalField(req, "originalPrice"); err != nil {
		return nil, err
	}
	if input.Currency, err = stringField(req, "currency"); err != nil {
		return nil, err
	}
	if input.IsPromotion, err = boolField(req, "isPromotion"); err != nil {
		return nil, err
	}

	o, err := s.OfferingService.CreateOffering(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(offeringValue(o))
}

// DeleteOffering handles the DeleteOffering RPC
func (s *Server) DeleteOffering(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "offeringId")
	if err != nil {
		return nil, err
	}

	deleted, err := s.OfferingService.DeleteOffering(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(map[string]interface{}{"deleted": deleted})
}

// GetOffering handles the GetOffering RPC
func (s *Server) GetOffering(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "offeringId")
	if err != nil {
		return nil, err
	}

	o, err := s.OfferingService.GetOffering(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return toStruct(offeringValue(o))
}

// ListOfferingsByMarket handles the ListOfferingsByMarket RPC
func (s *Server) ListOfferingsByMarket(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	marketID, err := uuidField(req, "marketId")
	if err != nil {
		return nil, err
	}

	offerings, err := s.OfferingService.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, mapError(err)
	}
	return offeringList(offerings)
}

// ListOfferingsByReferenceItem handles the ListOfferingsByReferenceItem RPC
func (s *Server) ListOfferingsByReferenceItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	referenceItemID, err := uuidField(req, "referenceItemId")
	if err != nil {
		return nil, err
	}

	offerings, err := s.OfferingService.ListByReferenceItem(ctx, referenceItemID)
	if err != nil {
		return nil, mapError(err)
	}
	return offeringList(offerings)
}

func offeringList(offerings []*domain.Offering) (*structpb.Struct, error) {
	list := make([]interface{}, 0, len(offerings))
	for _, o := range offerings {
		list = append(list, offeringValue(o))
	}
	return toStruct(map[string]interface{}{"offerings": list})
}

func priceInput(req *structpb.Struct) (pricing.RecordPriceInput, error) {
	var (
		in  pricing.RecordPriceInput
		err error
	)
	if in.OfferingID, err = uuidField(req, "offeringId"); err != nil {
		return in, err
	}
	price, err := decimalField(req, "price")
	if err != nil {
		return in, err
	}
	if !price.Valid {
		return in, status.Error(codes.InvalidArgument, "price is required")
	}
	in.Price = price.Decimal
	if in.OriginalPrice, err = decimalField(req, "originalPrice"); err != nil {
		return in, err
	}
	if in.Currency, err = stringField(req, "currency"); err != nil {
		return in, err
	}
	if in.IsPromotion, err = boolField(req, "isPromotion"); err != nil {
		return in, err
	}
	return in, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
