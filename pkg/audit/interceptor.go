package audit

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/consolehq/actionlog/pkg/auth"
	"github.com/consolehq/actionlog/pkg/observability"
)

// maxPendingStarts bounds the pending-start table. If a complete phase
// never arrives for an execution, its marker ages out instead of
// leaking.
const maxPendingStarts = 4096

// mutatingMethods are the only HTTP verbs eligible for logging.
var mutatingMethods = map[string]bool{
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// infraPathFragments mark infrastructure endpoints that are never
// logged regardless of method.
var infraPathFragments = []string{"health", "metrics", "ping", "status"}

// ExecutionContext carries the per-request context supplied by the
// workflow engine at both interception phases.
type ExecutionContext struct {
	// ExecutionID keys the start-time marker; it must be stable
	// between the start and complete phases of one request.
	ExecutionID string

	WorkflowName string
	NodeName     string

	Auth *auth.Result

	Method      string
	Path        string
	Payload     map[string]interface{}
	RequestSize int64
	IPAddress   string
	UserAgent   string

	// PriorValues supplies before-images for the changes summary.
	PriorValues map[string]interface{}

	Overrides Overrides
}

// Outcome carries the request result supplied at the complete phase.
type Outcome struct {
	StatusCode   int
	Success      bool
	ErrorMessage string
	Response     map[string]interface{}
}

// InterceptResult reports whether the phase produced a log dispatch.
type InterceptResult struct {
	Logged bool `json:"logged"`
}

// Interceptor implements the two-phase contract invoked by the
// workflow engine around each request. It must never fail or delay the
// workflow it instruments: internal errors and panics are swallowed
// and reported to diagnostics only.
type Interceptor struct {
	builder  *Builder
	pipeline *Pipeline
	pending  *lru.Cache[string, time.Time]
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

// InterceptorOptions configures an Interceptor.
type InterceptorOptions struct {
	Logger  logrus.FieldLogger
	Metrics *observability.Metrics
}

// NewInterceptor creates an interceptor feeding the given pipeline.
func NewInterceptor(builder *Builder, pipeline *Pipeline, opts InterceptorOptions) *Interceptor {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	// Size is fixed; New only errors on a non-positive size.
	pending, _ := lru.New[string, time.Time](maxPendingStarts)

	return &Interceptor{
		builder:  builder,
		pipeline: pipeline,
		pending:  pending,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Start records a monotonic start-time marker for the execution. No
// persistence occurs; the call always succeeds.
func (i *Interceptor) Start(exec ExecutionContext) (res InterceptResult) {
	defer i.recoverPhase("start", &res)

	if !i.eligible(exec) {
		i.countIntercept("start", false)
		return InterceptResult{}
	}

	// time.Time carries the monotonic clock; time.Since on the stored
	// value is immune to wall-clock adjustments.
	i.pending.Add(exec.ExecutionID, time.Now())
	i.countIntercept("start", false)
	return InterceptResult{}
}

// Complete assembles the call context into a log entry and dispatches
// it asynchronously. Returns Logged=false for skipped requests.
func (i *Interceptor) Complete(exec ExecutionContext, outcome Outcome) (res InterceptResult) {
	defer i.recoverPhase("complete", &res)

	if !i.eligible(exec) {
		i.countIntercept("complete", false)
		return InterceptResult{}
	}

	var elapsed int64
	if started, ok := i.pending.Get(exec.ExecutionID); ok {
		elapsed = time.Since(started).Milliseconds()
		i.pending.Remove(exec.ExecutionID)
	}

	entry := i.builder.Build(Input{
		Auth:            exec.Auth,
		Method:          exec.Method,
		Path:            exec.Path,
		Payload:         exec.Payload,
		WorkflowName:    exec.WorkflowName,
		NodeName:        exec.NodeName,
		RequestSize:     exec.RequestSize,
		IPAddress:       exec.IPAddress,
		UserAgent:       exec.UserAgent,
		StatusCode:      outcome.StatusCode,
		Success:         outcome.Success,
		ErrorMessage:    outcome.ErrorMessage,
		Response:        outcome.Response,
		ExecutionTimeMs: elapsed,
		PriorValues:     exec.PriorValues,
		Overrides:       exec.Overrides,
	})

	i.pipeline.Dispatch(entry)
	i.countIntercept("complete", true)
	return InterceptResult{Logged: true}
}

// eligible applies the skip rule: mutating verbs only, infrastructure
// paths never.
func (i *Interceptor) eligible(exec ExecutionContext) bool {
	if !mutatingMethods[strings.ToUpper(exec.Method)] {
		return false
	}
	lower := strings.ToLower(exec.Path)
	for _, fragment := range infraPathFragments {
		if strings.Contains(lower, fragment) {
			return false
		}
	}
	return true
}

// recoverPhase enforces the never-raise contract on a phase call.
func (i *Interceptor) recoverPhase(phase string, res *InterceptResult) {
	if r := recover(); r != nil {
		if i.metrics != nil {
			i.metrics.InterceptPanicsTotal.Inc()
		}
		i.log.WithField("phase", phase).Warnf("audit interceptor recovered: %v", r)
		*res = InterceptResult{}
	}
}

func (i *Interceptor) countIntercept(phase string, logged bool) {
	if i.metrics == nil {
		return
	}
	label := "false"
	if logged {
		label = "true"
	}
	i.metrics.InterceptsTotal.WithLabelValues(phase, label).Inc()
}
