package messages

// PositionReported — входящий GPS-фикс из топика driver.position.reported.
// Таймстемп отправителя игнорируется: captured_at назначает движок.
type PositionReported struct {
	DriverID  int64   `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
