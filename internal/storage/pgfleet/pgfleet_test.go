package pgfleet

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "gps_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/gps_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGFleet_StatusLedgerFlow(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	// нет событий: пустой view, не ошибка
	latest, err := st.LatestStatus(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, latest.StatusID)
	require.Nil(t, latest.StatusName)

	full, err := st.LatestStatusFull(ctx, 7)
	require.NoError(t, err)
	require.Nil(t, full)

	hist, err := st.StatusHistory(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, hist)

	// carry-forward без истории — NotFound, ничего не записано
	_, err = st.InsertFollowupStatus(ctx, models.FollowupInput{
		DriverID: 7, StatusID: 2, Location: "Port B", AwaitingDocument: true,
	}, "2025-03-01", "09:00:00")
	require.True(t, errors.Is(err, ErrNotFound))

	ref := "front-7.jpg"
	ev, err := st.InsertStatusEvent(ctx, models.StatusCreateInput{
		DriverID: 7, CompanyID: 3, Location: "Port A",
		ContainerSizeID: 2, TradeTypeID: 1, StatusID: 1,
		AwaitingDocument: false,
		Attachments:      models.AttachmentRefs{PhotoFront: &ref},
	}, "2025-03-01", "08:15:00")
	require.NoError(t, err)
	require.NotZero(t, ev.ID)
	// seed маппит (export, 1) -> green
	require.NotNil(t, ev.StatusColorID)
	require.Equal(t, int64(1), *ev.StatusColorID)

	latest, err = st.LatestStatus(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), *latest.StatusID)
	require.Equal(t, "Heading to depot", *latest.StatusName)

	// follow-up наследует company/size/trade и заново резолвит цвет
	fup, err := st.InsertFollowupStatus(ctx, models.FollowupInput{
		DriverID: 7, StatusID: 2, Location: "Port B", AwaitingDocument: true,
	}, "2025-03-01", "10:30:00")
	require.NoError(t, err)
	require.Equal(t, int64(3), fup.CompanyID)
	require.Equal(t, int64(2), fup.ContainerSizeID)
	require.Equal(t, int64(1), fup.TradeTypeID)
	require.NotNil(t, fup.StatusColorID)
	require.Equal(t, int64(2), *fup.StatusColorID)

	full, err = st.LatestStatusFull(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, full)
	require.Equal(t, int64(2), full.StatusID)
	require.Equal(t, int64(3), full.CompanyID)
	require.True(t, full.AwaitingDocument)
	require.Equal(t, "Loading at company", full.StatusName)

	hist, err = st.StatusHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "Loading at company", hist[0].StatusName)
	require.Equal(t, "Port B", hist[0].Location)
	require.Equal(t, "Heading to depot", hist[1].StatusName)
	require.Equal(t, "PT Bahari Trans", hist[0].CompanyName)
}

func TestPGFleet_LatestTieBreakByID(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	// две записи с одинаковым (date, time): побеждает бОльший id
	_, err := st.InsertStatusEvent(ctx, models.StatusCreateInput{
		DriverID: 9, CompanyID: 1, Location: "A",
		ContainerSizeID: 1, TradeTypeID: 1, StatusID: 1,
	}, "2025-03-02", "12:00:00")
	require.NoError(t, err)
	_, err = st.InsertStatusEvent(ctx, models.StatusCreateInput{
		DriverID: 9, CompanyID: 1, Location: "B",
		ContainerSizeID: 1, TradeTypeID: 1, StatusID: 3,
	}, "2025-03-02", "12:00:00")
	require.NoError(t, err)

	latest, err := st.LatestStatus(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, int64(3), *latest.StatusID)
}

func TestPGFleet_MissingColorMappingIsNull(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	// (import, 'Trip finished') в seed не замаплен
	ev, err := st.InsertStatusEvent(ctx, models.StatusCreateInput{
		DriverID: 4, CompanyID: 2, Location: "Depot",
		ContainerSizeID: 1, TradeTypeID: 2, StatusID: 5,
	}, "2025-03-03", "07:00:00")
	require.NoError(t, err)
	require.Nil(t, ev.StatusColorID)

	colorID, err := st.LookupColor(ctx, 2, 5)
	require.NoError(t, err)
	require.Nil(t, colorID)

	colorID, err = st.LookupColor(ctx, 1, 4)
	require.NoError(t, err)
	require.NotNil(t, colorID)
	require.Equal(t, int64(3), *colorID)
}

func TestPGFleet_CorrectionIsShallowAndIdempotent(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	ref := "doc-5.pdf"
	ev, err := st.InsertStatusEvent(ctx, models.StatusCreateInput{
		DriverID: 5, CompanyID: 1, Location: "Gate 1",
		ContainerSizeID: 1, TradeTypeID: 1, StatusID: 4,
		Attachments: models.AttachmentRefs{Document: &ref},
	}, "2025-03-04", "16:45:00")
	require.NoError(t, err)
	originalColor := ev.StatusColorID
	require.NotNil(t, originalColor)

	corr := models.StatusCorrection{
		EventID: ev.ID, StatusID: 5, Location: "Gate 2", AwaitingDocument: true,
	}
	driverID, err := st.CorrectStatusEvent(ctx, corr)
	require.NoError(t, err)
	require.Equal(t, int64(5), driverID)
	_, err = st.CorrectStatusEvent(ctx, corr) // идемпотентно
	require.NoError(t, err)

	got, err := st.GetStatusEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), got.StatusID)
	require.Equal(t, "Gate 2", got.Location)
	require.True(t, got.AwaitingDocument)
	// цвет и вложения не пересчитываются
	require.Equal(t, originalColor, got.StatusColorID)
	require.NotNil(t, got.Attachments.Document)
	require.Equal(t, "doc-5.pdf", *got.Attachments.Document)
	require.Equal(t, "2025-03-04", got.EventDate)
	require.Equal(t, "16:45:00", got.EventTime)

	_, err = st.CorrectStatusEvent(ctx, models.StatusCorrection{EventID: 99999, StatusID: 1})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestPGFleet_PositionsAndCatalogs(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	require.NoError(t, st.InsertPosition(ctx, models.PositionSample{
		DriverID: 11, Latitude: -6.2088, Longitude: 106.8456,
		CapturedAt: "2025-03-05 13:37:00",
	}))
	require.NoError(t, st.InsertPosition(ctx, models.PositionSample{
		DriverID: 11, Latitude: -6.2090, Longitude: 106.8460,
		CapturedAt: "2025-03-05 13:38:00",
	}))

	ps, err := st.ListPositions(ctx, 11, 0)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	require.Equal(t, "2025-03-05 13:38:00", ps[0].CapturedAt)
	require.Equal(t, -6.2090, ps[0].Latitude)

	companies, err := st.ListCompanies(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, companies)

	sizes, err := st.ListContainerSizes(ctx)
	require.NoError(t, err)
	require.Len(t, sizes, 3)

	trades, err := st.ListTradeTypes(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	sts, err := st.ListStatusesForTradeType(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sts, 5)
	sts, err = st.ListStatusesForTradeType(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sts, 4)

	name, err := st.CompanyName(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "PT Samudera Jaya", name)
	_, err = st.CompanyName(ctx, 999)
	require.True(t, errors.Is(err, ErrNotFound))

	name, err = st.StatusName(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, "Trip finished", name)
}

func TestPGFleet_Users(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	id, err := st.UpsertUser(ctx, "budi", "$2a$10$hash")
	require.NoError(t, err)
	require.NotZero(t, id)

	gotID, hash, err := st.CredentialsByName(ctx, "budi")
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.Equal(t, "$2a$10$hash", hash)

	_, _, err = st.CredentialsByName(ctx, "nobody")
	require.True(t, errors.Is(err, ErrNotFound))
}
