//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcadapter "github.com/simaogato/portfolio-engine/internal/adapter/grpc"
	"github.com/simaogato/portfolio-engine/internal/adapter/repository/postgres"
	"github.com/simaogato/portfolio-engine/internal/app"
	"github.com/simaogato/portfolio-engine/internal/config"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/usecase/cashflow"
	"github.com/simaogato/portfolio-engine/internal/usecase/corporateaction"
	"github.com/simaogato/portfolio-engine/internal/usecase/refdata"
	"github.com/simaogato/portfolio-engine/internal/usecase/trade"
)

const integrationToken = "integration-token"

var (
	db         *postgres.DB
	services   *app.App
	grpcClient *grpcadapter.PortfolioServiceClient
)

// TestMain migrates the database and serves the gRPC API in-process
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database and migrate
	var err error
	db, err = postgres.NewDB(config.Load().DatabaseURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	if err := db.Migrate(ctx); err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}
	services = app.New(db.Repositories(), app.Options{UseSnapshots: true})

	// 2. Start the gRPC server on a free port
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("Failed to listen: %v", err))
	}
	server := grpcadapter.NewGRPCServer(
		grpcadapter.NewServer(services.Reports, services.TaxLots, services.Actions, services.Snapshots),
		integrationToken,
	)
	go func() { _ = server.Serve(lis) }()

	// 3. Connect the client
	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to gRPC server: %v", err))
	}
	grpcClient = grpcadapter.NewPortfolioServiceClient(conn)

	code := m.Run()

	conn.Close()
	server.GracefulStop()
	db.Close()
	os.Exit(code)
}

// getAuthContext returns a context with authorization metadata
func getAuthContext() context.Context {
	md := metadata.New(map[string]string{
		"authorization": "Bearer " + integrationToken,
	})
	return metadata.NewOutgoingContext(context.Background(), md)
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

type seeded struct {
	portfolio uuid.UUID
	account   uuid.UUID
	asset     uuid.UUID
}

// seed creates a fresh portfolio, account and asset so reruns never collide,
// then deposits 5000 USD and buys 10 shares at 100 with a 1 fee on 2024-01-02
func seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()

	p, err := services.RefData.CreatePortfolio(ctx, "Integration "+uuid.NewString(), "USD", domain.CostMethodFIFO)
	require.NoError(t, err)
	acc, err := services.RefData.CreateAccount(ctx, p.ID, "Broker", "USD")
	require.NoError(t, err)
	symbol := "IT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	asset, err := services.RefData.CreateAsset(ctx, refdata.AssetInput{
		Symbol: symbol, Name: "Integration Corp", AssetType: domain.AssetTypeStock, Exchange: "TEST", Currency: "USD",
	})
	require.NoError(t, err)

	_, err = services.Cash.Create(ctx, cashflow.CashInput{
		PortfolioID: p.ID, AccountID: acc.ID,
		Date: date(t, "2024-01-02"), Type: domain.CashTxnDeposit, Amount: decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	_, err = services.Trades.Create(ctx, trade.TradeInput{
		PortfolioID: p.ID, AccountID: acc.ID, AssetID: asset.ID,
		Date: date(t, "2024-01-02"), Side: domain.TradeSideBuy,
		Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100), Fee: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	return seeded{portfolio: p.ID, account: acc.ID, asset: asset.ID}
}

func countCashRows(t *testing.T, portfolioID uuid.UUID) int {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM cash_transactions WHERE portfolio_id = $1`, portfolioID).Scan(&n)
	require.NoError(t, err)
	return n
}

// TestEndToEndFlow books trades in PostgreSQL and reads them back over gRPC
func TestEndToEndFlow(t *testing.T) {
	ctx := getAuthContext()
	s := seed(t)

	// Step A: deposit plus the buy's expense row
	assert.Equal(t, 2, countCashRows(t, s.portfolio))

	// Step B: positions over gRPC
	resp, err := grpcClient.GetPositions(ctx, &grpcadapter.GetPositionsRequest{
		PortfolioID: s.portfolio.String(), AsOf: "2024-06-30",
	})
	require.NoError(t, err)
	require.Len(t, resp.Positions, 1)
	assert.True(t, resp.Positions[0].Shares.Equal(decimal.NewFromInt(10)))
	assert.True(t, resp.Positions[0].CostBasis.Equal(decimal.NewFromInt(1001)))
	assert.Nil(t, resp.Positions[0].MarketValue)

	// Step C: a price makes the position valued
	_, err = services.RefData.RecordPrice(context.Background(), s.asset, date(t, "2024-06-28"), decimal.NewFromInt(120))
	require.NoError(t, err)
	resp, err = grpcClient.GetPositions(ctx, &grpcadapter.GetPositionsRequest{
		PortfolioID: s.portfolio.String(), AsOf: "2024-06-30",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Positions[0].MarketValue)
	assert.True(t, resp.Positions[0].MarketValue.Equal(decimal.NewFromInt(1200)))

	// Step D: tax lots
	lots, err := grpcClient.RebuildTaxLots(ctx, &grpcadapter.RebuildTaxLotsRequest{
		PortfolioID: s.portfolio.String(), AssetID: s.asset.String(),
	})
	require.NoError(t, err)
	require.Len(t, lots.Lots, 1)
	assert.Equal(t, "2024-01-02", lots.Lots[0].LotDate)
	assert.True(t, lots.Lots[0].RemainingShares.Equal(decimal.NewFromInt(10)))
}

// TestOversellRollsBack checks that a rejected trade leaves no rows behind
func TestOversellRollsBack(t *testing.T) {
	s := seed(t)
	before := countCashRows(t, s.portfolio)

	_, err := services.Trades.Create(context.Background(), trade.TradeInput{
		PortfolioID: s.portfolio, AccountID: s.account, AssetID: s.asset,
		Date: date(t, "2024-02-01"), Side: domain.TradeSideSell,
		Quantity: decimal.NewFromInt(11), Price: decimal.NewFromInt(110),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientShares)
	assert.Equal(t, before, countCashRows(t, s.portfolio))
}

// TestSplitProcessing processes a 2:1 split over gRPC exactly once
func TestSplitProcessing(t *testing.T) {
	ctx := getAuthContext()
	s := seed(t)

	// A snapshot before the split is scaled by processing
	_, err := grpcClient.MaterializeSnapshot(ctx, &grpcadapter.MaterializeSnapshotRequest{
		PortfolioID: s.portfolio.String(), Date: "2024-02-15",
	})
	require.NoError(t, err)

	action, err := services.Actions.Create(context.Background(), corporateaction.ActionInput{
		AssetID: s.asset, Date: date(t, "2024-03-01"), Type: domain.CorporateActionSplit,
		Numerator: 2, Denominator: 1,
	})
	require.NoError(t, err)

	res, err := grpcClient.ProcessCorporateAction(ctx, &grpcadapter.ProcessCorporateActionRequest{ActionID: action.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, string(domain.CorporateActionSplit), res.Type)

	_, err = grpcClient.ProcessCorporateAction(ctx, &grpcadapter.ProcessCorporateActionRequest{ActionID: action.ID.String()})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	var shares decimal.Decimal
	err = db.QueryRowContext(context.Background(),
		`SELECT shares FROM position_snapshots WHERE portfolio_id = $1 AND snapshot_date = $2`,
		s.portfolio, date(t, "2024-02-15")).Scan(&shares)
	require.NoError(t, err)
	assert.True(t, shares.Equal(decimal.NewFromInt(20)), shares.String())

	resp, err := grpcClient.GetPositions(ctx, &grpcadapter.GetPositionsRequest{
		PortfolioID: s.portfolio.String(), AsOf: "2024-06-30",
	})
	require.NoError(t, err)
	require.Len(t, resp.Positions, 1)
	assert.True(t, resp.Positions[0].Shares.Equal(decimal.NewFromInt(20)))
	assert.True(t, resp.Positions[0].CostBasis.Equal(decimal.NewFromInt(1001)))
}

// TestUnauthenticated verifies that the API rejects calls without a token
func TestUnauthenticated(t *testing.T) {
	_, err := grpcClient.GetPositions(context.Background(), &grpcadapter.GetPositionsRequest{
		PortfolioID: uuid.NewString(),
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
