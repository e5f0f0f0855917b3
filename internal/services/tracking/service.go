package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/rafiff23/Mahligai-GPS/internal/blobstore"
	"github.com/rafiff23/Mahligai-GPS/internal/broker/messages"
	"github.com/rafiff23/Mahligai-GPS/internal/cache"
	"github.com/rafiff23/Mahligai-GPS/internal/models"
)

// ErrValidation — обязательное поле отсутствует или невалидно.
// Проверять через errors.Is; текст конкретного поля — в обёртке.
var ErrValidation = errors.New("validation failed")

type Repository interface {
	InsertPosition(ctx context.Context, p models.PositionSample) error
	InsertStatusEvent(ctx context.Context, in models.StatusCreateInput, eventDate, eventTime string) (*models.StatusEvent, error)
	CorrectStatusEvent(ctx context.Context, c models.StatusCorrection) (int64, error)
	InsertFollowupStatus(ctx context.Context, in models.FollowupInput, eventDate, eventTime string) (*models.StatusEvent, error)
	LatestStatus(ctx context.Context, driverID int64) (models.LatestStatusView, error)
	LatestStatusFull(ctx context.Context, driverID int64) (*models.FullStatusView, error)
	StatusHistory(ctx context.Context, driverID int64) ([]*models.HistoryEntry, error)
	ListCompanies(ctx context.Context) ([]*models.CatalogItem, error)
	ListContainerSizes(ctx context.Context) ([]*models.CatalogItem, error)
	ListTradeTypes(ctx context.Context) ([]*models.CatalogItem, error)
	ListStatusesForTradeType(ctx context.Context, tradeTypeID int64) ([]*models.CatalogItem, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	cache    cache.BytesCache
	producer Producer

	statusTopic string
	latestTTL   time.Duration

	// Civil-зона леджера. Все date/time считаются в ней, никогда в зоне процесса.
	loc *time.Location
	now func() time.Time
}

func New(repo Repository, blobs blobstore.Store, c cache.BytesCache, producer Producer, statusTopic string, latestTTL time.Duration, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:        repo,
		blobs:       blobs,
		cache:       c,
		producer:    producer,
		statusTopic: statusTopic,
		latestTTL:   latestTTL,
		loc:         loc,
		now:         time.Now,
	}
}

// WithNow подменяет часы (для тестов).
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) civilNow() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) RecordPosition(ctx context.Context, driverID int64, latitude, longitude float64) error {
	if driverID <= 0 {
		return errors.Wrap(ErrValidation, "driver_id is required")
	}
	// Диапазон координат не проверяем: леджер пишет что прислали.
	return s.repo.InsertPosition(ctx, models.PositionSample{
		DriverID:   driverID,
		Latitude:   latitude,
		Longitude:  longitude,
		CapturedAt: s.civilNow().Format("2006-01-02 15:04:05"),
	})
}

// RecordStatus — транзакционный путь создания: сначала вложения в blob store
// (любой сбой отменяет всю операцию до записи в леджер), затем одна строка
// с derived-цветом. Уже загруженные блобы при сбое не откатываются —
// их подбирает reconciler.
func (s *Service) RecordStatus(ctx context.Context, in models.StatusCreateInput, uploads models.AttachmentUploads) (*models.StatusEvent, error) {
	if err := validateStatusCreate(in); err != nil {
		return nil, err
	}

	refs, err := s.storeAttachments(ctx, uploads)
	if err != nil {
		return nil, err
	}
	in.Attachments = refs

	now := s.civilNow()
	ev, err := s.repo.InsertStatusEvent(ctx, in, now.Format("2006-01-02"), now.Format("15:04:05"))
	if err != nil {
		return nil, err
	}

	s.refreshLatest(ctx, ev.DriverID)
	s.publishStatusUpdated(ctx, ev)
	return ev, nil
}

func (s *Service) CorrectStatus(ctx context.Context, c models.StatusCorrection) error {
	if c.EventID == 0 {
		return errors.Wrap(ErrValidation, "id is required")
	}
	if c.StatusID <= 0 {
		return errors.Wrap(ErrValidation, "status_id is required")
	}

	driverID, err := s.repo.CorrectStatusEvent(ctx, c)
	if err != nil {
		return err
	}
	// Правка могла затронуть последнее событие водителя.
	s.refreshLatest(ctx, driverID)
	return nil
}

// AppendFollowupStatus двигает workflow дальше, не заставляя клиента
// повторять неизменный контекст рейса: company/size/trade берутся из
// последнего события. Без прежнего события — NotFound, записи нет.
func (s *Service) AppendFollowupStatus(ctx context.Context, in models.FollowupInput) (*models.StatusEvent, error) {
	if in.DriverID <= 0 {
		return nil, errors.Wrap(ErrValidation, "driver_id is required")
	}
	if in.StatusID <= 0 {
		return nil, errors.Wrap(ErrValidation, "status_id is required")
	}

	now := s.civilNow()
	ev, err := s.repo.InsertFollowupStatus(ctx, in, now.Format("2006-01-02"), now.Format("15:04:05"))
	if err != nil {
		return nil, err
	}

	s.refreshLatest(ctx, ev.DriverID)
	s.publishStatusUpdated(ctx, ev)
	return ev, nil
}

func (s *Service) LatestStatus(ctx context.Context, driverID int64) (models.LatestStatusView, error) {
	if driverID <= 0 {
		return models.LatestStatusView{}, errors.Wrap(ErrValidation, "driver_id is required")
	}

	if s.cache != nil && s.latestTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, latestKey(driverID)); err == nil && ok {
			var v models.LatestStatusView
			if json.Unmarshal(b, &v) == nil {
				return v, nil
			}
		}
	}

	v, err := s.repo.LatestStatus(ctx, driverID)
	if err != nil {
		return v, err
	}
	if s.cache != nil && s.latestTTL > 0 {
		b, _ := json.Marshal(v)
		_ = s.cache.Set(ctx, latestKey(driverID), b, s.latestTTL)
	}
	return v, nil
}

func (s *Service) LatestStatusFull(ctx context.Context, driverID int64) (*models.FullStatusView, error) {
	if driverID <= 0 {
		return nil, errors.Wrap(ErrValidation, "driver_id is required")
	}
	return s.repo.LatestStatusFull(ctx, driverID)
}

func (s *Service) StatusHistory(ctx context.Context, driverID int64) ([]*models.HistoryEntry, error) {
	if driverID <= 0 {
		return nil, errors.Wrap(ErrValidation, "driver_id is required")
	}
	return s.repo.StatusHistory(ctx, driverID)
}

func (s *Service) ListCompanies(ctx context.Context) ([]*models.CatalogItem, error) {
	return s.repo.ListCompanies(ctx)
}

func (s *Service) ListContainerSizes(ctx context.Context) ([]*models.CatalogItem, error) {
	return s.repo.ListContainerSizes(ctx)
}

func (s *Service) ListTradeTypes(ctx context.Context) ([]*models.CatalogItem, error) {
	return s.repo.ListTradeTypes(ctx)
}

func (s *Service) ListStatusesForTradeType(ctx context.Context, tradeTypeID int64) ([]*models.CatalogItem, error) {
	if tradeTypeID <= 0 {
		return nil, errors.Wrap(ErrValidation, "trade_type_id is required")
	}
	return s.repo.ListStatusesForTradeType(ctx, tradeTypeID)
}

func validateStatusCreate(in models.StatusCreateInput) error {
	switch {
	case in.DriverID <= 0:
		return errors.Wrap(ErrValidation, "driver_id is required")
	case in.CompanyID <= 0:
		return errors.Wrap(ErrValidation, "company_id is required")
	case in.Location == "":
		return errors.Wrap(ErrValidation, "location is required")
	case in.ContainerSizeID <= 0:
		return errors.Wrap(ErrValidation, "container_size_id is required")
	case in.TradeTypeID <= 0:
		return errors.Wrap(ErrValidation, "trade_type_id is required")
	case in.StatusID <= 0:
		return errors.Wrap(ErrValidation, "status_id is required")
	}
	return nil
}

// storeAttachments грузит присутствующие слоты по порядку; первый сбой
// прекращает операцию целиком.
func (s *Service) storeAttachments(ctx context.Context, u models.AttachmentUploads) (models.AttachmentRefs, error) {
	var refs models.AttachmentRefs

	slots := []struct {
		name    string
		payload *models.AttachmentPayload
		ref     **string
	}{
		{"photo_front", u.PhotoFront, &refs.PhotoFront},
		{"photo_back", u.PhotoBack, &refs.PhotoBack},
		{"photo_left", u.PhotoLeft, &refs.PhotoLeft},
		{"photo_right", u.PhotoRight, &refs.PhotoRight},
		{"document", u.Document, &refs.Document},
	}
	for _, slot := range slots {
		if slot.payload == nil {
			continue
		}
		ref, err := s.blobs.Save(ctx, slot.payload.Name, slot.payload.Data)
		if err != nil {
			return models.AttachmentRefs{}, errors.Wrapf(err, "store %s", slot.name)
		}
		*slot.ref = &ref
	}
	return refs, nil
}

// refreshLatest перечитывает "последний статус" из БД и кладёт в кэш.
// Best effort: кэш не обязан быть всегда.
func (s *Service) refreshLatest(ctx context.Context, driverID int64) {
	if s.cache == nil || s.latestTTL <= 0 {
		return
	}
	v, err := s.repo.LatestStatus(ctx, driverID)
	if err != nil {
		_ = s.cache.Del(ctx, latestKey(driverID))
		return
	}
	b, _ := json.Marshal(v)
	_ = s.cache.Set(ctx, latestKey(driverID), b, s.latestTTL)
}

// publishStatusUpdated — интеграционное уведомление после коммита.
// Сбой публикации не валит запись, только лог.
func (s *Service) publishStatusUpdated(ctx context.Context, ev *models.StatusEvent) {
	if s.producer == nil || s.statusTopic == "" {
		return
	}
	msg := messages.StatusUpdated{
		EventID:          ev.ID,
		DriverID:         ev.DriverID,
		CompanyID:        ev.CompanyID,
		ContainerSizeID:  ev.ContainerSizeID,
		TradeTypeID:      ev.TradeTypeID,
		StatusID:         ev.StatusID,
		StatusColorID:    ev.StatusColorID,
		Location:         ev.Location,
		AwaitingDocument: ev.AwaitingDocument,
		EventDate:        ev.EventDate,
		EventTime:        ev.EventTime,
	}
	b, _ := json.Marshal(msg)
	key := []byte(fmt.Sprintf("%d", ev.DriverID))
	if err := s.producer.Publish(ctx, s.statusTopic, key, b); err != nil {
		slog.Warn("publish status.updated failed", "driver_id", ev.DriverID, "event_id", ev.ID, "err", err)
	}
}

func latestKey(driverID int64) string {
	return fmt.Sprintf("driver:%d:latest", driverID)
}
