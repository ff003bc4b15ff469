package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/holdings"
	"github.com/simaogato/portfolio-engine/internal/usecase/pnl"
)

// ReportReader serves positions and PnL, usually through the report cache
type ReportReader interface {
	Positions(ctx context.Context, portfolioID uuid.UUID, asOf time.Time, inBaseCurrency bool) ([]holdings.PositionView, error)
	PnlSummary(ctx context.Context, portfolioID uuid.UUID, from, to, asOf time.Time) (*pnl.Summary, error)
}

// LotRebuilder rebuilds the FIFO lots of one (portfolio, asset)
type LotRebuilder interface {
	RebuildTaxLots(ctx context.Context, portfolioID, assetID uuid.UUID) ([]*domain.TaxLot, error)
}

// ActionProcessor applies a pending corporate action
type ActionProcessor interface {
	Process(ctx context.Context, actionID uuid.UUID) (*corporateaction.ProcessResult, error)
}

// SnapshotMaterializer writes a position snapshot
type SnapshotMaterializer interface {
	Materialize(ctx context.Context, portfolioID uuid.UUID, date time.Time) ([]*domain.PositionSnapshot, error)
}

// Server implements the PortfolioService gRPC server
type Server struct {
	Reports   ReportReader
	TaxLots   LotRebuilder
	Actions   ActionProcessor
	Snapshots SnapshotMaterializer

	// Now supplies the default as-of date
	Now func() time.Time
}

// NewServer creates a new gRPC server instance
func NewServer(reports ReportReader, taxLots LotRebuilder, actions ActionProcessor, snapshots SnapshotMaterializer) *Server {
	return &Server{
		Reports:   reports,
		TaxLots:   taxLots,
		Actions:   actions,
		Snapshots: snapshots,
		Now:       time.Now,
	}
}

// NewGRPCServer builds a *grpc.Server with the auth and logging interceptors,
// the PortfolioService, the health service and reflection registered
func NewGRPCServer(srv *Server, token string) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(),
		AuthInterceptor(token),
	))
	RegisterPortfolioServiceServer(s, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	// Reflection lists service names only. The JSON codec has no file
	// descriptors, so describe requests for PortfolioService fail.
	reflection.Register(s)
	return s
}

// GetPositions handles the GetPositions RPC
func (s *Server) GetPositions(ctx context.Context, req *GetPositionsRequest) (*GetPositionsResponse, error) {
	// Parse portfolio ID
	portfolioID, err := parseID("portfolio_id", req.PortfolioID)
	if err != nil {
		return nil, err
	}

	// Parse optional as-of date; today when empty
	asOf, err := s.parseDate("as_of", req.AsOf)
	if err != nil {
		return nil, err
	}

	views, err := s.Reports.Positions(ctx, portfolioID, asOf, req.InBaseCurrency)
	if err != nil {
		return nil, mapError(err)
	}

	positions := make([]Position, 0, len(views))
	for _, v := range views {
		positions = append(positions, positionToMessage(v))
	}
	return &GetPositionsResponse{Positions: positions}, nil
}

// ComputePnlSummary handles the ComputePnlSummary RPC
func (s *Server) ComputePnlSummary(ctx context.Context, req *ComputePnlSummaryRequest) (*ComputePnlSummaryResponse, error) {
	portfolioID, err := parseID("portfolio_id", req.PortfolioID)
	if err != nil {
		return nil, err
	}
	if req.From == "" || req.To == "" {
		return nil, status.Error(codes.InvalidArgument, "from and to are required")
	}
	from, err := s.parseDate("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := s.parseDate("to", req.To)
	if err != nil {
		return nil, err
	}

	// as_of defaults to the end of the period
	asOf := to
	if req.AsOf != "" {
		if asOf, err = s.parseDate("as_of", req.AsOf); err != nil {
			return nil, err
		}
	}

	sum, err := s.Reports.PnlSummary(ctx, portfolioID, from, to, asOf)
	if err != nil {
		return nil, mapError(err)
	}
	return &ComputePnlSummaryResponse{
		PortfolioID:      sum.PortfolioID.String(),
		From:             sum.From.Format(domain.DateLayout),
		To:               sum.To.Format(domain.DateLayout),
		AsOf:             sum.AsOf.Format(domain.DateLayout),
		RealizedPnL:      sum.RealizedPnL,
		UnrealizedPnL:    sum.UnrealizedPnL,
		IncomeDividend:   sum.IncomeDividend,
		IncomeReward:     sum.IncomeReward,
		IncomeOther:      sum.IncomeOther,
		IncomeTotal:      sum.IncomeTotal,
		PriceReturn:      sum.PriceReturn,
		TotalReturn:      sum.TotalReturn,
		InvestedCashflow: sum.InvestedCashflow,
	}, nil
}

// RebuildTaxLots handles the RebuildTaxLots RPC
func (s *Server) RebuildTaxLots(ctx context.Context, req *RebuildTaxLotsRequest) (*RebuildTaxLotsResponse, error) {
	portfolioID, err := parseID("portfolio_id", req.PortfolioID)
	if err != nil {
		return nil, err
	}
	assetID, err := parseID("asset_id", req.AssetID)
	if err != nil {
		return nil, err
	}

	lots, err := s.TaxLots.RebuildTaxLots(ctx, portfolioID, assetID)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]TaxLot, 0, len(lots))
	for _, l := range lots {
		out = append(out, TaxLot{
			ID:                 l.ID.String(),
			AccountID:          l.AccountID.String(),
			LotDate:            l.LotDate.Format(domain.DateLayout),
			OriginalShares:     l.OriginalShares,
			RemainingShares:    l.RemainingShares,
			CostPerShare:       l.CostPerShare,
			TotalCost:          l.TotalCost,
			AssetCurrency:      l.AssetCurrency,
			SettlementCurrency: l.SettlementCurrency,
			FXRate:             l.FXRate,
			Source:             string(l.Source),
			SourceID:           l.SourceID.String(),
		})
	}
	return &RebuildTaxLotsResponse{Lots: out}, nil
}

// ProcessCorporateAction handles the ProcessCorporateAction RPC
func (s *Server) ProcessCorporateAction(ctx context.Context, req *ProcessCorporateActionRequest) (*ProcessCorporateActionResponse, error) {
	actionID, err := parseID("action_id", req.ActionID)
	if err != nil {
		return nil, err
	}

	res, err := s.Actions.Process(ctx, actionID)
	if err != nil {
		return nil, mapError(err)
	}

	portfolios := make([]string, 0, len(res.Portfolios))
	for _, id := range res.Portfolios {
		portfolios = append(portfolios, id.String())
	}
	return &ProcessCorporateActionResponse{
		ActionID:      res.ActionID.String(),
		Type:          string(res.Type),
		TradesCreated: res.TradesCreated,
		Portfolios:    portfolios,
	}, nil
}

// MaterializeSnapshot handles the MaterializeSnapshot RPC
func (s *Server) MaterializeSnapshot(ctx context.Context, req *MaterializeSnapshotRequest) (*MaterializeSnapshotResponse, error) {
	portfolioID, err := parseID("portfolio_id", req.PortfolioID)
	if err != nil {
		return nil, err
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}

	rows, err := s.Snapshots.Materialize(ctx, portfolioID, date)
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]SnapshotRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, SnapshotRow{
			AssetID:     r.AssetID.String(),
			Shares:      r.Shares,
			CostBasis:   r.CostBasis,
			RealizedPnL: r.RealizedPnL,
		})
	}
	return &MaterializeSnapshotResponse{
		PortfolioID: portfolioID.String(),
		Date:        date.Format(domain.DateLayout),
		Rows:        out,
	}, nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", field, err)
	}
	return id, nil
}

func (s *Server) parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return domain.DateOf(s.Now()), nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", field, err)
	}
	return d, nil
}

func positionToMessage(v holdings.PositionView) Position {
	return Position{
		AssetID:           v.AssetID.String(),
		Symbol:            v.Symbol,
		Name:              v.Name,
		Currency:          v.Currency,
		Shares:            v.Shares,
		AvgCost:           v.AvgCost,
		CostBasis:         v.CostBasis,
		RealizedPnL:       v.RealizedPnL,
		LastPrice:         v.LastPrice,
		MarketValue:       v.MarketValue,
		UnrealizedPnL:     v.UnrealizedPnL,
		BaseCurrency:      v.BaseCurrency,
		FXRate:            v.FXRate,
		MarketValueBase:   v.MarketValueBase,
		CostBasisBase:     v.CostBasisBase,
		UnrealizedPnLBase: v.UnrealizedPnLBase,
	}
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
	case domain.IsDomainRejection(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
