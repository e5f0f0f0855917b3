package models

// Civil-поля (date/time) держим строками канонического вида
// "2006-01-02" / "15:04:05": это календарные значения в зоне из конфига,
// не инстанты, и лексикографический порядок совпадает с хронологическим.

type PositionSample struct {
	ID         uint64
	DriverID   int64
	Latitude   float64
	Longitude  float64
	CapturedAt string // "2006-01-02 15:04:05"
}

type AttachmentRefs struct {
	PhotoFront *string
	PhotoBack  *string
	PhotoLeft  *string
	PhotoRight *string
	Document   *string
}

type StatusEvent struct {
	ID               uint64
	DriverID         int64
	CompanyID        int64
	Location         string
	EventDate        string
	EventTime        string
	ContainerSizeID  int64
	TradeTypeID      int64
	StatusID         int64
	StatusColorID    *int64 // derived from the catalog mapping at insert; NULL when unmapped
	AwaitingDocument bool
	Attachments      AttachmentRefs
}

type StatusCreateInput struct {
	DriverID         int64
	CompanyID        int64
	Location         string
	ContainerSizeID  int64
	TradeTypeID      int64
	StatusID         int64
	AwaitingDocument bool
	Attachments      AttachmentRefs
}

type StatusCorrection struct {
	EventID          uint64
	StatusID         int64
	Location         string
	AwaitingDocument bool
}

type FollowupInput struct {
	DriverID         int64
	StatusID         int64
	Location         string
	AwaitingDocument bool
}

// LatestStatusView — ответ "текущий статус". Оба поля nil, когда у водителя
// ещё нет ни одного события (это не ошибка).
type LatestStatusView struct {
	StatusID   *int64
	StatusName *string
}

type FullStatusView struct {
	DriverID         int64
	CompanyID        int64
	ContainerSizeID  int64
	TradeTypeID      int64
	StatusID         int64
	AwaitingDocument bool
	StatusName       string
}

type HistoryEntry struct {
	Date        string
	CompanyName string
	StatusName  string
	Location    string
}

type CatalogItem struct {
	ID   int64
	Name string
}

// AttachmentPayload — сырой файл до загрузки в blob store.
type AttachmentPayload struct {
	Name string
	Data []byte
}

type AttachmentUploads struct {
	PhotoFront *AttachmentPayload
	PhotoBack  *AttachmentPayload
	PhotoLeft  *AttachmentPayload
	PhotoRight *AttachmentPayload
	Document   *AttachmentPayload
}
