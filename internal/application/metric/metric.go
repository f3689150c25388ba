package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики - количество запросов
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP метрики - время обработки запросов
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики - количество активных соединений
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	liveRoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_rooms_active",
			Help: "Количество активных комнат",
		},
	)

	liveCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_commands_total",
			Help: "Команды, обработанные комнатами",
		},
		[]string{"command", "result"},
	)

	liveBroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_broadcast_events_total",
			Help: "События, разосланные в комнаты",
		},
		[]string{"type"},
	)

	liveGiveawayDrawsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_giveaway_draws_total",
			Help: "Проведённые розыгрыши",
		},
		[]string{"mode"},
	)

	liveRoomResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_room_resets_total",
			Help: "Откаты состояния комнаты после внутренней ошибки",
		},
	)

	liveOutboxDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_outbox_drops_total",
			Help: "Соединения, закрытые из-за переполненной очереди отправки",
		},
	)
)

// RecordHTTPMetrics записывает метрики HTTP запроса
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func IncrementRooms() {
	liveRoomsActive.Inc()
}

func DecrementRooms() {
	liveRoomsActive.Dec()
}

func RecordCommand(command string, result string) {
	liveCommandsTotal.WithLabelValues(command, result).Inc()
}

func RecordBroadcast(eventType string) {
	liveBroadcastEventsTotal.WithLabelValues(eventType).Inc()
}

func RecordDraw(mode string) {
	liveGiveawayDrawsTotal.WithLabelValues(mode).Inc()
}

func RecordRoomReset() {
	liveRoomResetsTotal.Inc()
}

func RecordOutboxDrop() {
	liveOutboxDropsTotal.Inc()
}
