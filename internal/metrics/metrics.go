// Package metrics exposes Prometheus counters for settings operations.
//
// All methods are safe to call on a nil *Metrics, so components can record
// unconditionally and leave metrics optional.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/sandboxctl/internal/validation"
)

const namespace = "sandboxctl"

// Result label values.
const (
	ResultValid     = "valid"
	ResultInvalid   = "invalid"
	ResultSuccess   = "success"
	ResultRejected  = "rejected"
	ResultCancelled = "cancelled"
	ResultFailed    = "failed"
)

// Metrics holds the settings counters.
type Metrics struct {
	validations   *prometheus.CounterVec
	issues        *prometheus.CounterVec
	imports       *prometheus.CounterVec
	presetApplies *prometheus.CounterVec
}

// New creates the counters and registers them on reg. Collectors already
// registered on reg are reused, so several managers can share a registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Configuration validations by result.",
		}, []string{"result"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Validation errors and warnings by kind.",
		}, []string{"kind"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Configuration imports by result.",
		}, []string{"result"}),
		presetApplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preset_applies_total",
			Help:      "Successful preset applications by preset name.",
		}, []string{"preset"}),
	}

	var err error
	if m.validations, err = register(reg, m.validations); err != nil {
		return nil, err
	}
	if m.issues, err = register(reg, m.issues); err != nil {
		return nil, err
	}
	if m.imports, err = register(reg, m.imports); err != nil {
		return nil, err
	}
	if m.presetApplies, err = register(reg, m.presetApplies); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

// ObserveValidation records a validation result and its issues.
func (m *Metrics) ObserveValidation(res validation.Result) {
	if m == nil {
		return
	}
	result := ResultValid
	if !res.Valid {
		result = ResultInvalid
	}
	m.validations.WithLabelValues(result).Inc()

	for _, issue := range res.Errors {
		m.issues.WithLabelValues(issue.Code.String()).Inc()
	}
	for _, issue := range res.Warnings {
		m.issues.WithLabelValues(issue.Code.String()).Inc()
	}
}

// ObserveImport records an import outcome. Use the Result* constants.
func (m *Metrics) ObserveImport(result string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(result).Inc()
}

// ObservePresetApply records a successful preset application.
func (m *Metrics) ObservePresetApply(preset string) {
	if m == nil {
		return
	}
	m.presetApplies.WithLabelValues(preset).Inc()
}
