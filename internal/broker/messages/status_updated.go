package messages

// StatusUpdated публикуется после коммита каждого нового события статуса.
// Это интеграционный хук для downstream-потребителей (дашборды, отчёты),
// не канал доставки клиентам.
type StatusUpdated struct {
	EventID  uint64 `json:"event_id"`
	DriverID int64  `json:"driver_id"`

	CompanyID       int64 `json:"company_id"`
	ContainerSizeID int64 `json:"container_size_id"`
	TradeTypeID     int64 `json:"trade_type_id"`

	StatusID      int64  `json:"status_id"`
	StatusColorID *int64 `json:"status_color_id,omitempty"`

	Location         string `json:"location"`
	AwaitingDocument bool   `json:"awaiting_document"`

	EventDate string `json:"event_date"`
	EventTime string `json:"event_time"`
}
