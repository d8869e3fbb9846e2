package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts directory operations. Helpers are nil-safe.
type Metrics struct {
	TenantsCreated  prometheus.Counter
	EntitiesCreated prometheus.Counter
	RoleUpserts     prometheus.Counter
	SecretChecks    *prometheus.CounterVec
}

// New creates and registers the tenant metrics.
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_tenants_created_total",
			Help: "Tenants created",
		}),
		EntitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_entities_created_total",
			Help: "Entities created",
		}),
		RoleUpserts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "obligo_role_upserts_total",
			Help: "Role assignments created or replaced",
		}),
		SecretChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "obligo_tenant_secret_checks_total",
			Help: "Tenant secret verifications by result",
		}, []string{"result"}), // result: "ok", "rejected"
	}
}

func (m *Metrics) IncTenantCreated() {
	if m != nil {
		m.TenantsCreated.Inc()
	}
}

func (m *Metrics) IncEntityCreated() {
	if m != nil {
		m.EntitiesCreated.Inc()
	}
}

func (m *Metrics) IncRoleUpsert() {
	if m != nil {
		m.RoleUpserts.Inc()
	}
}

func (m *Metrics) IncSecretCheck(result string) {
	if m != nil {
		m.SecretChecks.WithLabelValues(result).Inc()
	}
}
