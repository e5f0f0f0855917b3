package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rafiff23/Mahligai-GPS/internal/broker/messages"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
	"github.com/rafiff23/Mahligai-GPS/internal/services/auth"
	"github.com/rafiff23/Mahligai-GPS/internal/services/tracking"
	"github.com/rafiff23/Mahligai-GPS/internal/storage/pgfleet"
)

type fakeRepo struct {
	mu        sync.Mutex
	positions []models.PositionSample
}

func (r *fakeRepo) InsertPosition(ctx context.Context, p models.PositionSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, p)
	return nil
}

func (r *fakeRepo) positionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions)
}

func (r *fakeRepo) InsertStatusEvent(ctx context.Context, in models.StatusCreateInput, eventDate, eventTime string) (*models.StatusEvent, error) {
	return &models.StatusEvent{ID: 1, DriverID: in.DriverID}, nil
}

func (r *fakeRepo) CorrectStatusEvent(ctx context.Context, c models.StatusCorrection) (int64, error) {
	return 0, pgfleet.ErrNotFound
}

func (r *fakeRepo) InsertFollowupStatus(ctx context.Context, in models.FollowupInput, eventDate, eventTime string) (*models.StatusEvent, error) {
	return nil, pgfleet.ErrNotFound
}

func (r *fakeRepo) LatestStatus(ctx context.Context, driverID int64) (models.LatestStatusView, error) {
	return models.LatestStatusView{}, nil
}

func (r *fakeRepo) LatestStatusFull(ctx context.Context, driverID int64) (*models.FullStatusView, error) {
	return nil, nil
}

func (r *fakeRepo) StatusHistory(ctx context.Context, driverID int64) ([]*models.HistoryEntry, error) {
	return []*models.HistoryEntry{}, nil
}

func (r *fakeRepo) ListCompanies(ctx context.Context) ([]*models.CatalogItem, error) {
	return []*models.CatalogItem{}, nil
}
func (r *fakeRepo) ListContainerSizes(ctx context.Context) ([]*models.CatalogItem, error) {
	return []*models.CatalogItem{}, nil
}
func (r *fakeRepo) ListTradeTypes(ctx context.Context) ([]*models.CatalogItem, error) {
	return []*models.CatalogItem{}, nil
}
func (r *fakeRepo) ListStatusesForTradeType(ctx context.Context, tradeTypeID int64) ([]*models.CatalogItem, error) {
	return []*models.CatalogItem{}, nil
}

type credStore struct{}

func (credStore) CredentialsByName(ctx context.Context, name string) (int64, string, error) {
	return 0, "", pgfleet.ErrNotFound
}
func (credStore) UpsertUser(ctx context.Context, name, passwordHash string) (int64, error) {
	return 1, nil
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// scriptedConsumer отдаёт заготовленные сообщения и ждёт отмены.
type scriptedConsumer struct {
	values [][]byte
}

func (c scriptedConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, v := range c.values {
		if err := handler(nil, v); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func TestRunGPSAPI_SwaggerAndHealthServed(t *testing.T) {
	svc := tracking.New(&fakeRepo{}, nil, nil, nil, "", 0, nil)
	authSvc := auth.New(credStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := gpsAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   writeSwagger(t),
		positionTopic: "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runGPSAPI(ctx, opts, svc, authSvc, nil, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "\"swagger\"")

	resp, err = http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get("http://" + httpAddr + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	require.Error(t, <-errCh)
}

func TestRunGPSAPI_ConsumesPositionReports(t *testing.T) {
	repo := &fakeRepo{}
	svc := tracking.New(repo, nil, nil, nil, "", 0, nil)
	authSvc := auth.New(credStore{})

	msg, err := json.Marshal(messages.PositionReported{DriverID: 5, Latitude: -6.2, Longitude: 106.8})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := gpsAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   writeSwagger(t),
		positionTopic: "t",
		consumerGroup: "g",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runGPSAPI(ctx, opts, svc, authSvc, nil, scriptedConsumer{values: [][]byte{msg}})
	}()

	require.Eventually(t, func() bool {
		return repo.positionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Error(t, <-errCh)
}

func TestRunGPSAPI_MissingSwagger(t *testing.T) {
	svc := tracking.New(&fakeRepo{}, nil, nil, nil, "", 0, nil)
	err := runGPSAPI(context.Background(), gpsAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: "/does/not/exist.json",
	}, svc, auth.New(credStore{}), nil, fakeConsumer{})
	require.Error(t, err)
}
