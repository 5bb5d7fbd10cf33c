// metrics — prometheus-счётчики жизненного цикла токенов.
//
// Все методы безопасны на nil-получателе: сервис работает и без метрик.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "club_auth"

// Исходы ротации refresh-токена.
const (
	RotationFresh   = "fresh"
	RotationStale   = "stale"
	RotationInvalid = "invalid"
	// RotationLostRace — конкурентная ротация того же токена уже выполнена.
	RotationLostRace = "lost_race"
)

// Metrics — набор коллекторов auth-сервиса.
type Metrics struct {
	issued             *prometheus.CounterVec
	rotations          *prometheus.CounterVec
	revocations        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	storeUp            prometheus.Gauge
}

// New регистрирует коллекторы в reg. reg == nil — prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Total number of minted tokens by kind.",
		}, []string{"kind"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Outcomes of refresh token presentation.",
		}, []string{"outcome"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Revocation store writes by result.",
		}, []string{"result"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected credentials by internal reason.",
		}, []string{"reason"}),
		storeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "revocation_store_up",
			Help:      "1 if the last revocation store probe succeeded.",
		}),
	}

	reg.MustRegister(m.issued, m.rotations, m.revocations, m.validationFailures, m.storeUp)

	return m
}

// TokenIssued учитывает выпущенный токен вида kind (access/refresh).
func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(kind).Inc()
}

// Rotation учитывает исход обращения за refresh.
func (m *Metrics) Rotation(outcome string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(outcome).Inc()
}

// Revocation учитывает запись в хранилище отозванных токенов.
func (m *Metrics) Revocation(ok bool) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "failed"
	}
	m.revocations.WithLabelValues(result).Inc()
}

// ValidationFailed учитывает отказ проверки токена по причине reason.
func (m *Metrics) ValidationFailed(reason string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(reason).Inc()
}

// SetStoreUp выставляет доступность хранилища отозванных токенов (1/0).
func (m *Metrics) SetStoreUp(up bool) {
	if m == nil {
		return
	}

	if up {
		m.storeUp.Set(1)
		return
	}
	m.storeUp.Set(0)
}
